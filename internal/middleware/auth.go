package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/router"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

const sessionUserIDKey = "user_id"

// AuthVerifier resolves the request principal. It never issues credentials.
type AuthVerifier struct {
	useAccessToken bool
	useSession     bool
	optional       bool
}

func NewAuthVerifier() *AuthVerifier {
	return &AuthVerifier{}
}

func (a *AuthVerifier) WithAccessToken() *AuthVerifier {
	a.useAccessToken = true
	return a
}

func (a *AuthVerifier) WithSession() *AuthVerifier {
	a.useSession = true
	return a
}

// WithOptional lets anonymous requests through with an empty user id. The
// websocket endpoint uses it so the rejection happens with a close code.
func (a *AuthVerifier) WithOptional() *AuthVerifier {
	a.optional = true
	return a
}

func (a *AuthVerifier) Middleware() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		req := xcontext.HTTPRequest(ctx)

		if a.useAccessToken {
			if token := getAccessToken(ctx, req); token != "" {
				info, err := xcontext.TokenEngine(ctx).Verify(token)
				if err == nil && info.ID != "" {
					return xcontext.WithRequestUserID(ctx, info.ID), nil
				}

				xcontext.Logger(ctx).Debugf("Invalid access token: %v", err)
			}
		}

		if a.useSession {
			if userID := getSessionUserID(ctx, req); userID != "" {
				return xcontext.WithRequestUserID(ctx, userID), nil
			}
		}

		if a.optional {
			return nil, nil
		}

		return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}
}

func getAccessToken(ctx context.Context, req *http.Request) string {
	authorization := req.Header.Get("Authorization")
	if auth, token, found := strings.Cut(authorization, " "); found {
		if auth == "Bearer" {
			return token
		}
		return ""
	}

	if cookie, err := req.Cookie(xcontext.Configs(ctx).Auth.AccessToken.Name); err == nil {
		return cookie.Value
	}

	// Browsers cannot set headers on the websocket handshake.
	return req.URL.Query().Get("access_token")
}

func getSessionUserID(ctx context.Context, req *http.Request) string {
	store := xcontext.SessionStore(ctx)
	if store == nil {
		return ""
	}

	session, err := store.Get(req, xcontext.Configs(ctx).Session.Name)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot get session: %v", err)
		return ""
	}

	userID, _ := session.Values[sessionUserIDKey].(string)
	return userID
}
