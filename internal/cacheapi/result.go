package cacheapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// errorResponse is the JSON body of any non-2xx Result.
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Result is a prepared HTTP response: handlers build one and return it to
// endpoint, which logs and writes it, rather than writing to the
// ResponseWriter directly.
type Result struct {
	Status      int
	IsErr       bool
	InternalMsg string

	resp interface{}
	hdrs [][2]string
}

func ok(respObj interface{}, internalMsg string, v ...interface{}) Result {
	return Result{Status: http.StatusOK, resp: respObj, InternalMsg: fmt.Sprintf(internalMsg, v...)}
}

func created(respObj interface{}, internalMsg string, v ...interface{}) Result {
	return Result{Status: http.StatusCreated, resp: respObj, InternalMsg: fmt.Sprintf(internalMsg, v...)}
}

func noContent(internalMsg string, v ...interface{}) Result {
	return Result{Status: http.StatusNoContent, InternalMsg: fmt.Sprintf(internalMsg, v...)}
}

func badRequest(userMsg string, internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusBadRequest, userMsg, internalMsg, v...)
}

func unauthorized(userMsg string, internalMsg string, v ...interface{}) Result {
	if userMsg == "" {
		userMsg = "you are not authorized to do that"
	}
	r := errResult(http.StatusUnauthorized, userMsg, internalMsg, v...)
	return r.withHeader("WWW-Authenticate", `Bearer realm="gentabctl cache"`)
}

func forbidden(internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusForbidden, "you don't have permission to do that", internalMsg, v...)
}

func notFound(internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusNotFound, "the requested job could not be found", internalMsg, v...)
}

func internalServerError(internalMsg string, v ...interface{}) Result {
	return errResult(http.StatusInternalServerError, "an internal server error occurred", internalMsg, v...)
}

func errResult(status int, userMsg, internalMsg string, v ...interface{}) Result {
	return Result{
		Status:      status,
		IsErr:       true,
		InternalMsg: fmt.Sprintf(internalMsg, v...),
		resp:        errorResponse{Error: userMsg, Status: status},
	}
}

func (r Result) withHeader(name, val string) Result {
	r.hdrs = append(append([][2]string{}, r.hdrs...), [2]string{name, val})
	return r
}

func (r Result) writeResponse(w http.ResponseWriter, req *http.Request) {
	if r.Status == 0 {
		panic("result not populated")
	}

	var body []byte
	if r.Status != http.StatusNoContent {
		var err error
		body, err = json.Marshal(r.resp)
		if err != nil {
			r = internalServerError("marshal response: %s", err.Error())
			body, _ = json.Marshal(r.resp)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	for _, h := range r.hdrs {
		w.Header().Set(h[0], h[1])
	}

	level := "INFO "
	if r.IsErr {
		level = "ERROR"
	}
	log.Printf("%s: %s %s: HTTP-%d: %s", level, req.Method, req.URL.Path, r.Status, r.InternalMsg)

	w.WriteHeader(r.Status)
	if r.Status != http.StatusNoContent {
		w.Write(body)
	}
}
