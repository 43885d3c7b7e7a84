package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const callbackPath = "/callback"

type callbackResult struct {
	code string
	err  error
}

// LoopbackLogin returns a LoginFunc that serves the OAuth redirect on a
// random 127.0.0.1 port and prints the authorization URL to out.
func LoopbackLogin(out io.Writer, log zerolog.Logger) LoginFunc {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("listen for redirect: %w", err)
		}

		conf := *cfg
		conf.RedirectURL = "http://" + ln.Addr().String() + callbackPath
		state := uuid.NewString()

		results := make(chan callbackResult, 1)
		srv := &http.Server{
			Handler:           callbackRouter(state, results),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("redirect listener stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintf(out, "Open this URL in your browser to authorize taskeroo:\n\n  %s\n\n", authURL)
		log.Debug().Str("redirect", conf.RedirectURL).Msg("waiting for authorization")

		select {
		case res := <-results:
			if res.err != nil {
				return nil, res.err
			}
			tok, err := conf.Exchange(ctx, res.code)
			if err != nil {
				return nil, fmt.Errorf("exchange code: %w", err)
			}
			return tok, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func callbackRouter(state string, results chan<- callbackResult) http.Handler {
	r := chi.NewRouter()
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch in redirect")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("redirect carried no authorization code")
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
	})
	return r
}
