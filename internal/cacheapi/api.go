package cacheapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dekarrin/gentab/internal/emit"
	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/dekarrin/gentab/internal/project"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// API holds the dependencies a running cacheapi.Server needs: the job store
// and the secret used to sign/verify bearer tokens. Router builds an
// http.Handler from it the way the teacher's own API/chi wiring does.
type API struct {
	Store       Store
	Secret      []byte
	UnauthDelay time.Duration
	Opts        project.Options
}

// Router builds the full chi route tree for the cache workbench.
func (api API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(dontPanic())

	r.Get("/info", endpoint(api.epInfo))
	r.Post("/login", endpoint(api.epLogin))

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(api.Secret, api.UnauthDelay))
		r.Post("/jobs", endpoint(api.epCreateJob))
		r.Get("/jobs/{id}", endpoint(api.epGetJob))
		r.Delete("/jobs/{id}", endpoint(api.epDeleteJob))
	})

	return r
}

type endpointFunc func(req *http.Request) Result

// endpoint adapts an endpointFunc to http.HandlerFunc: it writes the
// returned Result and turns a panic into a 500 response. It adds no delay
// of its own; the unauthorized delay is applied only by requireAuth.
func endpoint(ep endpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer recoverTo500(w, req)
		result := ep(req)
		result.writeResponse(w, req)
	}
}

func dontPanic() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer recoverTo500(w, req)
			next.ServeHTTP(w, req)
		})
	}
}

func recoverTo500(w http.ResponseWriter, req *http.Request) {
	if p := recover(); p != nil {
		r := internalServerError("panic: %v\nstack: %s", p, string(debug.Stack()))
		r.writeResponse(w, req)
	}
}

type infoResponse struct {
	Service string `json:"service"`
}

func (api API) epInfo(req *http.Request) Result {
	return ok(infoResponse{Service: "gentab cacheapi"}, "info")
}

type loginRequest struct {
	Owner string `json:"owner"`
	Key   string `json:"key"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (api API) epLogin(req *http.Request) Result {
	var body loginRequest
	if err := parseJSON(req, &body); err != nil {
		return badRequest(err.Error(), err.Error())
	}

	rec, err := api.Store.GetAPIKeyByOwner(req.Context(), body.Owner)
	if err != nil {
		return unauthorized("", "owner %q: %s", body.Owner, err.Error())
	}
	if err := checkAPIKey(rec.Hash, body.Key); err != nil {
		return unauthorized("", "owner %q: key mismatch", body.Owner)
	}

	tok, err := issueToken(body.Owner, api.Secret)
	if err != nil {
		return internalServerError("issue token: %s", err.Error())
	}
	return created(loginResponse{Token: tok}, "owner %q logged in", body.Owner)
}

type jobResponse struct {
	ID          string            `json:"id"`
	ContentHash string            `json:"content_hash"`
	Owner       string            `json:"owner"`
	Created     time.Time         `json:"created"`
	Lexer       emit.LexerTables  `json:"lexer"`
	Parser      emit.ParserTables `json:"parser"`
}

func toJobResponse(j Job) jobResponse {
	return jobResponse{
		ID:          j.ID.String(),
		ContentHash: j.ContentHash,
		Owner:       j.Owner,
		Created:     j.Created,
		Lexer:       j.Lexer,
		Parser:      j.Parser,
	}
}

// epCreateJob compiles the posted grammar source and caches the result,
// returning the existing Job untouched if the exact source text was already
// compiled, by this or any other owner (the cache is keyed by content hash
// alone).
func (api API) epCreateJob(req *http.Request) Result {
	owner, _ := ownerFromContext(req.Context())

	src, err := io.ReadAll(req.Body)
	if err != nil {
		return badRequest("could not read request body", err.Error())
	}

	hash := ContentHash(string(src))
	if existing, err := api.Store.FindByHash(req.Context(), hash); err == nil {
		return ok(toJobResponse(existing), "cache hit for owner %q", owner)
	}

	p, err := project.Load("grammar", string(src), api.Opts)
	if err != nil {
		return badRequest(compileErrorMessage(err), err.Error())
	}

	var sink captureSink
	if err := p.Compile(&sink); err != nil {
		return badRequest(compileErrorMessage(err), err.Error())
	}

	j, err := api.Store.Create(req.Context(), Job{
		ContentHash: hash,
		Owner:       owner,
		Lexer:       sink.lexer,
		Parser:      sink.parser,
	})
	if err != nil {
		return internalServerError("store job: %s", err.Error())
	}

	return created(toJobResponse(j), "owner %q compiled new job %s", owner, j.ID)
}

func (api API) epGetJob(req *http.Request) Result {
	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest("not a valid job ID", err.Error())
	}

	j, err := api.Store.GetByID(req.Context(), id)
	if err != nil {
		return notFound("job %s: %s", id, err.Error())
	}
	return ok(toJobResponse(j), "fetched job %s", id)
}

func (api API) epDeleteJob(req *http.Request) Result {
	owner, _ := ownerFromContext(req.Context())

	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest("not a valid job ID", err.Error())
	}

	j, err := api.Store.GetByID(req.Context(), id)
	if err != nil {
		return notFound("job %s: %s", id, err.Error())
	}
	if j.Owner != owner {
		return forbidden("owner %q tried to delete job %s owned by %q", owner, id, j.Owner)
	}

	if err := api.Store.DeleteByID(req.Context(), id); err != nil {
		return internalServerError("delete job %s: %s", id, err.Error())
	}
	return noContent("deleted job %s", id)
}

// compileErrorMessage renders a gtberr.SourceError as a user-facing message
// when possible, falling back to the plain error text.
func compileErrorMessage(err error) string {
	if se, ok := err.(*gtberr.SourceError); ok {
		return se.FullMessage()
	}
	return err.Error()
}

// captureSink is an emit.Sink that holds the most recent tables handed to it
// in memory, rather than writing them anywhere, so epCreateJob can capture a
// Project's Compile output for caching.
type captureSink struct {
	lexer  emit.LexerTables
	parser emit.ParserTables
}

func (s *captureSink) EmitLexer(t emit.LexerTables) error {
	s.lexer = t
	return nil
}

func (s *captureSink) EmitParser(t emit.ParserTables) error {
	s.parser = t
	return nil
}

// v must be a pointer to a type.
func parseJSON(req *http.Request, v interface{}) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return newErr("malformed JSON in request", ErrBodyUnmarshal)
	}
	return nil
}
