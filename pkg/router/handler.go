package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/ws"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

func wrapHandler[Request, Response any](
	router *Router,
	method string,
	handler HandlerFunc[Request, Response],
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := router.newRequestContext(w, r)
		defer func() { router.close(ctx) }()

		ctx, err := runMiddlewares(ctx, router.befores)
		if err != nil {
			ctx = xcontext.WithError(ctx, err)
			return
		}

		req := new(Request)
		if err := parseRequest(r, method, req); err != nil {
			xcontext.Logger(ctx).Debugf("Cannot parse request: %v", err)
			ctx = xcontext.WithError(ctx, errorx.New(errorx.BadRequest, "Invalid request"))
			return
		}

		resp, err := handler(ctx, req)
		if err != nil {
			ctx = xcontext.WithError(ctx, err)
			return
		}

		ctx = xcontext.WithResponse(ctx, resp)
		ctx, err = runMiddlewares(ctx, router.afters)
		if err != nil {
			ctx = xcontext.WithError(ctx, err)
		}
	}
}

func wrapWebsocket(router *Router, handler WebsocketHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := router.newRequestContext(w, r)
		defer func() {
			// The response was already written by the upgrade, only the
			// closers are left.
			for _, closer := range router.closers {
				closer(ctx)
			}
		}()

		ctx, err := runMiddlewares(ctx, router.befores)
		if err != nil {
			ctx = xcontext.WithError(ctx, err)
			writeResponse(ctx, w)
			return
		}

		cfg := xcontext.Configs(ctx)
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.Server.AllowOrigin),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied to the client.
			xcontext.Logger(ctx).Debugf("Cannot upgrade websocket: %v", err)
			ctx = xcontext.WithError(ctx, errorx.New(errorx.BadRequest, "Cannot upgrade connection"))
			return
		}

		client := ws.NewClient(conn, cfg.Chat.PingInterval.Duration, cfg.Chat.WriteTimeout.Duration)
		defer client.Close(websocket.CloseNormalClosure, "")

		if err := handler(ctx, client); err != nil {
			ctx = xcontext.WithError(ctx, err)
		}
	}
}

func (r *Router) newRequestContext(w http.ResponseWriter, req *http.Request) context.Context {
	ctx := r.ctx
	ctx = xcontext.WithHTTPRequest(ctx, req)
	ctx = xcontext.WithHTTPWriter(ctx, w)
	return ctx
}

func (r *Router) close(ctx context.Context) {
	writeResponse(ctx, xcontext.HTTPWriter(ctx))
	for _, closer := range r.closers {
		closer(ctx)
	}
}

func runMiddlewares(ctx context.Context, middlewares []MiddlewareFunc) (context.Context, error) {
	for _, m := range middlewares {
		newCtx, err := m(ctx)
		if err != nil {
			return ctx, err
		}

		if newCtx != nil {
			ctx = newCtx
		}
	}

	return ctx, nil
}

func parseRequest(r *http.Request, method string, req any) error {
	switch method {
	case http.MethodGet:
		params := map[string]any{}
		for key, values := range r.URL.Query() {
			if len(values) == 1 {
				params[key] = values[0]
			} else {
				params[key] = values
			}
		}

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           req,
		})
		if err != nil {
			return err
		}

		return decoder.Decode(params)

	case http.MethodPost:
		err := json.NewDecoder(r.Body).Decode(req)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		return nil
	}

	return errors.New("unsupported method")
}

func checkOrigin(allowOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowOrigins) == 0 {
			return true
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		for _, o := range allowOrigins {
			if o == "*" || o == origin {
				return true
			}
		}

		return false
	}
}
