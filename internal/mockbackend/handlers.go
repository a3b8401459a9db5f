package mockbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
	"github.com/aussiebroadwan/regconsole/pkg/httpx"
	"github.com/aussiebroadwan/regconsole/pkg/slogx"
)

const maxRequestBody = 64 << 10

// AuthHandler serves the four console authentication endpoints.
type AuthHandler struct {
	Backend *Backend
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type verifyOTPRequest struct {
	SessionID string `json:"session_id"`
	OTPCode   string `json:"otp_code"`
	UserType  string `json:"user_type"`
}

type verifyOTPResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserType string `json:"user_type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type resendOTPRequest struct {
	SessionID string `json:"session_id"`
	UserType  string `json:"user_type"`
}

type resendOTPResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// HandleLogin handles POST /login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	switch {
	case req.Username == "":
		fieldError("username", msgFieldRequired).WriteError(w)
		return
	case req.Password == "":
		fieldError("password", msgFieldRequired).WriteError(w)
		return
	}
	role, apiErr := parseUserType(req.UserType)
	if apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	sessionID, err := h.Backend.Login(r.Context(), req.Username, req.Password, role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		SessionID: sessionID,
		Message:   "OTP sent to your registered email address.",
	})
}

// HandleVerifyOTP handles POST /verify-otp.
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decode(w, r, &req) {
		return
	}

	switch {
	case req.SessionID == "":
		fieldError("session_id", msgFieldRequired).WriteError(w)
		return
	case req.OTPCode == "":
		fieldError("otp_code", msgFieldRequired).WriteError(w)
		return
	case consoleauth.ValidateOTP(req.OTPCode) != nil:
		fieldError("otp_code", "Ensure this field has exactly 6 digits.").WriteError(w)
		return
	}
	role, apiErr := parseUserType(req.UserType)
	if apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	pair, err := h.Backend.Verify(r.Context(), req.SessionID, role, req.OTPCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifyOTPResponse{
		Access:   pair.Access,
		Refresh:  pair.Refresh,
		UserType: string(pair.Account.Role),
		UserID:   pair.Account.ID,
		Username: pair.Account.Username,
	})
}

// HandleResendOTP handles POST /resend-otp.
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if !decode(w, r, &req) {
		return
	}

	if req.SessionID == "" {
		fieldError("session_id", msgFieldRequired).WriteError(w)
		return
	}
	role, apiErr := parseUserType(req.UserType)
	if apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	sessionID, err := h.Backend.Resend(r.Context(), req.SessionID, role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resendOTPResponse{
		Message:   "A new OTP has been sent.",
		SessionID: sessionID,
	})
}

// HandleLogout handles POST /logout. Success is 205 with no body.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Refresh == "" {
		fieldError("refresh", msgFieldRequired).WriteError(w)
		return
	}

	if err := h.Backend.Logout(r.Context(), req.Refresh); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusResetContent)
}

// LivezHandler reports that the backend is running.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": version,
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		slogx.FromContext(r.Context()).Debug("malformed request body", "err", err)
		httpx.WriteDetail(w, http.StatusBadRequest, "Malformed request body.")
		return false
	}
	return true
}

func parseUserType(s string) (consoleauth.Role, *APIError) {
	if s == "" {
		return "", fieldError("user_type", msgFieldRequired)
	}
	role, err := consoleauth.ParseRole(s)
	if err != nil {
		return "", fieldError("user_type", fmt.Sprintf("%q is not a valid choice.", s))
	}
	return role, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		log.Info("request rejected", "status", apiErr.Status, "reason", apiErr.Error())
		apiErr.WriteError(w)
		return
	}

	log.Error("request failed", "err", err)
	ErrServer.WriteError(w)
}
