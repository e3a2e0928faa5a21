package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
	"github.com/JuliaRakitina/ai-email-sorter/internal/util"
)

const stateCookie = "oauth_state"

type AuthHandler struct {
	accounts  *service.AccountService
	oauth     *oauth2.Config
	jwtSecret string
}

func NewAuthHandler(accounts *service.AccountService, oauth *oauth2.Config, jwtSecret string) *AuthHandler {
	return &AuthHandler{accounts: accounts, oauth: oauth, jwtSecret: jwtSecret}
}

// Login handles GET /auth/login. Starts the Google OAuth dance; the
// state lives in a short cookie and is checked on callback.
func (h *AuthHandler) Login(c *gin.Context) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	state := hex.EncodeToString(buf)
	c.SetCookie(stateCookie, state, 300, "/", "", false, true)

	url := h.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	c.Redirect(http.StatusFound, url)
}

// Callback handles GET /auth/callback. A request carrying a valid
// session token connects an additional mailbox to that user; otherwise
// this is a login and the mailbox owner becomes the user.
func (h *AuthHandler) Callback(c *gin.Context) {
	wantState, err := c.Cookie(stateCookie)
	if err != nil || wantState == "" || c.Query("state") != wantState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	tok, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	var userID int64
	if raw := util.ExtractToken(c.Request); raw != "" {
		if id, err := util.ParseJWT(raw, h.jwtSecret); err == nil {
			userID = id
		}
	}

	user, account, err := h.accounts.Connect(c.Request.Context(), userID, tok)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect account"})
		return
	}

	session, err := util.GenerateJWT(user.ID, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": session,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
		},
		"account": gin.H{
			"id":    account.ID,
			"email": account.Email,
		},
	})
}
