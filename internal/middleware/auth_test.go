package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/testutil"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

func Test_AuthVerifier_AccessToken(t *testing.T) {
	ctx := testutil.MockContext()
	token, err := xcontext.TokenEngine(ctx).Generate(testutil.Student1.ID, model.AccessToken{
		ID:       testutil.Student1.ID,
		Username: testutil.Student1.Username,
	})
	require.NoError(t, err)

	verifier := NewAuthVerifier().WithAccessToken().Middleware()

	tests := []struct {
		name    string
		prepare func(req *http.Request)
	}{
		{
			name:    "bearer header",
			prepare: func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) },
		},
		{
			name: "cookie",
			prepare: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: xcontext.Configs(ctx).Auth.AccessToken.Name, Value: token})
			},
		},
		{
			name: "query",
			prepare: func(req *http.Request) {
				q := req.URL.Query()
				q.Set("access_token", token)
				req.URL.RawQuery = q.Encode()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/chat/distributed-systems", nil)
			tt.prepare(req)

			newCtx, err := verifier(xcontext.WithHTTPRequest(ctx, req))
			require.NoError(t, err)
			require.Equal(t, testutil.Student1.ID, xcontext.RequestUserID(newCtx))
		})
	}
}

func Test_AuthVerifier_Session(t *testing.T) {
	ctx := testutil.MockContext()
	sessionName := xcontext.Configs(ctx).Session.Name

	setupReq := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	session, err := xcontext.SessionStore(ctx).New(setupReq, sessionName)
	require.NoError(t, err)
	session.Values["user_id"] = testutil.Student2.ID
	require.NoError(t, session.Save(setupReq, recorder))

	req := httptest.NewRequest(http.MethodGet, "/getMyChatRooms", nil)
	for _, cookie := range recorder.Result().Cookies() {
		req.AddCookie(cookie)
	}

	newCtx, err := NewAuthVerifier().WithSession().Middleware()(xcontext.WithHTTPRequest(ctx, req))
	require.NoError(t, err)
	require.Equal(t, testutil.Student2.ID, xcontext.RequestUserID(newCtx))
}

func Test_AuthVerifier_Anonymous(t *testing.T) {
	ctx := testutil.MockContext()
	req := httptest.NewRequest(http.MethodGet, "/getMyChatRooms", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	ctx = xcontext.WithHTTPRequest(ctx, req)

	_, err := NewAuthVerifier().WithAccessToken().WithSession().Middleware()(ctx)
	require.ErrorIs(t, err, errorx.New(errorx.Unauthenticated, ""))

	newCtx, err := NewAuthVerifier().WithAccessToken().WithOptional().Middleware()(ctx)
	require.NoError(t, err)
	require.Nil(t, newCtx)
}
