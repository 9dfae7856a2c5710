package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// APIError 서버가 2xx 가 아닌 상태로 응답
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

type apiResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type roomRequest struct {
	RoomID string `json:"roomId"`
}

// api is a thin JSON client for the backend's HTTP routes.
type api struct {
	server  string
	timeout time.Duration
}

func (a api) post(path, token string, body any) (*apiResponse, error) {
	agent := fiber.Post(strings.TrimRight(a.server, "/") + path)
	agent.Timeout(a.timeout)
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		agent.JSON(body)
	}
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}

	status, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request %s: %w", path, errors.Join(errs...))
	}

	var out apiResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && status < 300 {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	if status >= 300 {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, &APIError{Status: status, Message: msg}
	}
	return &out, nil
}

func (a api) register(username, password string) (*apiResponse, error) {
	return a.post("/register", "", credentials{Username: username, Password: password})
}

func (a api) login(username, password string) (*apiResponse, error) {
	return a.post("/login", "", credentials{Username: username, Password: password})
}

func (a api) logout(token string) (*apiResponse, error) {
	return a.post("/logout", token, nil)
}

func (a api) createRoom(token, roomID string) (*apiResponse, error) {
	return a.post("/create-room", token, roomRequest{RoomID: roomID})
}

func (a api) joinRoom(token, roomID string) (*apiResponse, error) {
	return a.post("/join-room", token, roomRequest{RoomID: roomID})
}

// relayURL http(s)://host → ws(s)://host/ws
func relayURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", server)
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws") + "/ws"
	return u.String(), nil
}
