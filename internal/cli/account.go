package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRegisterCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			res, err := o.api().register(args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func newLoginCmd(o *options) *cobra.Command {
	var printToken bool
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and save the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			res, err := o.api().login(args[0], pw)
			if err != nil {
				return err
			}
			s := &Session{Server: o.server, Username: res.Username, Token: res.Token}
			if err := s.Save(o.sessionPath); err != nil {
				return err
			}
			if printToken {
				fmt.Fprintln(cmd.OutOrStdout(), res.Token)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", res.Username)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printToken, "print-token", false, "print the token instead of a greeting")
	return cmd
}

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the access token and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := o.credential()
			if err != nil {
				return err
			}
			res, err := o.api().logout(token)
			if err != nil {
				return err
			}
			if err := RemoveSession(o.sessionPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func newCreateRoomCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create-room [roomId]",
		Short: "Create a room (a random id is generated when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := o.credential()
			if err != nil {
				return err
			}
			roomID := uuid.NewString()[:8]
			if len(args) == 1 {
				roomID = args[0]
			}
			res, err := o.api().createRoom(token, roomID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.RoomID)
			return nil
		},
	}
}

func newJoinRoomCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "join-room <roomId>",
		Short: "Check that a room exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := o.credential()
			if err != nil {
				return err
			}
			res, err := o.api().joinRoom(token, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}
