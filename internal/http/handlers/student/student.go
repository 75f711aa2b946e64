// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE: THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Each exported function receives its dependencies once, at route
// registration, and returns the http.HandlerFunc the router calls on every
// request:
//
//	router.HandleFunc("PATCH /students/{id}", student.Patch(store, update.Default(), log))
//
// Request bodies are flat: merit and other are sent next to name, age and
// major. Responses carry the stored, nested document.
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aanand-mishra/scholarship-api/internal/schema"
	"github.com/aanand-mishra/scholarship-api/internal/storage"
	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"
	"github.com/aanand-mishra/scholarship-api/internal/utils/response"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// writeOptions are used by both PUT and PATCH: return the document as it is
// after the write, and validate what is written.
var writeOptions = storage.UpdateOptions{ReturnUpdated: true, Validate: true}

// Saved is the POST response body.
type Saved struct {
	Msg         string        `json:"msg"`
	SavedObject types.Student `json:"savedObject"`
}

// Replaced is the PUT response body.
type Replaced struct {
	Msg        string        `json:"msg"`
	UpdateData types.Student `json:"updateData"`
}

// Patched is the PATCH response body.
type Patched struct {
	Msg         string        `json:"msg"`
	UpdatedData types.Student `json:"updatedData"`
}

// decodeBody decodes the JSON request body into v. The body must hold
// exactly one JSON value.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return apperr.Wrap(err, apperr.ErrBadRequest.Code, http.StatusBadRequest, "request body is empty")
	}
	if err != nil {
		return apperr.Wrap(err, apperr.ErrBadRequest.Code, http.StatusBadRequest, "malformed request body")
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Wrap(errors.New("unexpected data after JSON value"),
			apperr.ErrBadRequest.Code, http.StatusBadRequest, "malformed request body")
	}
	return nil
}

// decodeInput decodes and validates a full create/replace body.
func decodeInput(w http.ResponseWriter, r *http.Request) (types.StudentInput, error) {
	var in types.StudentInput
	if err := decodeBody(w, r, &in); err != nil {
		return in, err
	}

	if err := schema.Validator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return in, apperr.Validation(verrs)
		}
		return in, apperr.Validation(err)
	}
	return in, nil
}

// writeFailure answers a failed write with the status carried by err:
// 400 for validation and malformed ids, 404 for unknown ids, 500 otherwise.
func writeFailure(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	e := apperr.FromError(err)
	if e.Status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err))
	} else {
		log.Info(op+" rejected", zap.String("code", e.Code), zap.Error(err))
	}
	response.WriteError(w, err)
}

// serverFailure answers a failed read or delete with 500, whatever the cause.
func serverFailure(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	log.Error(op+" failed", zap.Error(err))
	response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /students
// Creates a new student from the flat JSON body.
//
// Request body (JSON), every field required:
//
//	{ "name": "Amy", "age": 19, "major": "Math", "merit": 50, "other": 10 }
//
// Success response (200 OK):
//
//	{ "msg": "student saved", "savedObject": { "id": "...", ..., "scholarship": {...} } }
//
// Error responses:
//
//	400 Bad Request  — empty body, malformed JSON, or failed validation
//	500 Internal     — store error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("creating a student")

		in, err := decodeInput(w, r)
		if err != nil {
			writeFailure(w, log, "create student", err)
			return
		}

		saved, err := store.Insert(r.Context(), in.Student())
		if err != nil {
			writeFailure(w, log, "create student", err)
			return
		}

		log.Info("student created", zap.String("id", saved.ID))
		response.WriteJSON(w, http.StatusOK, Saved{Msg: "student saved", SavedObject: saved})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /students
// Returns a JSON array of every student, [] when there are none.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(store storage.Storage, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("getting all students")

		students, err := store.FindAll(r.Context())
		if err != nil {
			serverFailure(w, log, "list students", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /students/{id}
// Returns the student, or null when no student has that id.
//
// A malformed id is a server error (500) on this path.
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(store storage.Storage, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Debug("getting a student", zap.String("id", id))

		student, err := store.FindByID(r.Context(), id)
		if err != nil {
			serverFailure(w, log, "get student", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Replace handles PUT /students/{id}
// Overwrites the whole student. Every field is required, and the stored
// scholarship becomes exactly {merit, other} from the body.
//
// Error responses:
//
//	400 Bad Request  — malformed id, empty body, or failed validation
//	404 Not Found    — no student has that id
//	500 Internal     — store error
//
// An unknown id answers 404, not 400 and not 200 with null.
//
// ─────────────────────────────────────────────────────────────────────────────
func Replace(store storage.Storage, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Debug("replacing a student", zap.String("id", id))

		in, err := decodeInput(w, r)
		if err != nil {
			writeFailure(w, log, "replace student", err)
			return
		}

		replaced, err := store.ReplaceByID(r.Context(), id, in.Student(), writeOptions)
		if err != nil {
			writeFailure(w, log, "replace student", err)
			return
		}

		log.Info("student replaced", zap.String("id", id))
		response.WriteJSON(w, http.StatusOK, Replaced{Msg: "student replaced", UpdateData: replaced})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Patch handles PATCH /students/{id}
// Changes only the fields present in the body; everything else keeps its
// stored value.
//
// Request body (JSON), any subset of the fields:
//
//	{ "age": 21, "merit": 300 }
//
// The builder turns it into { "age": 21, "scholarship.merit": 300 }.
//
// Error responses:
//
//	400 Bad Request  — malformed id, body that is not a JSON object, or
//	                   failed validation
//	404 Not Found    — no student has that id (not a 200 with null)
//	500 Internal     — store error
//
// ─────────────────────────────────────────────────────────────────────────────
func Patch(store storage.Storage, builder *update.Builder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Debug("patching a student", zap.String("id", id))

		var body map[string]any
		if err := decodeBody(w, r, &body); err != nil {
			writeFailure(w, log, "patch student", err)
			return
		}
		if body == nil {
			writeFailure(w, log, "patch student",
				apperr.Wrap(fmt.Errorf("got null"), apperr.ErrBadRequest.Code,
					http.StatusBadRequest, "request body must be a JSON object"))
			return
		}

		spec := builder.Build(body)
		log.Debug("update specification built",
			zap.String("id", id), zap.Strings("paths", spec.Paths()))

		patched, err := store.UpdateByID(r.Context(), id, spec, writeOptions)
		if err != nil {
			writeFailure(w, log, "patch student", err)
			return
		}

		log.Info("student patched", zap.String("id", id))
		response.WriteJSON(w, http.StatusOK, Patched{Msg: "student partially updated", UpdatedData: patched})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /students/{id}
// Permanently removes a student.
//
// Success response (200 OK), also when no student had that id:
//
//	{ "acknowledged": true, "deletedCount": 1 }
//
// Any failure, a malformed id included, is a 500.
// ─────────────────────────────────────────────────────────────────────────────
func Delete(store storage.Storage, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.Debug("deleting a student", zap.String("id", id))

		result, err := store.DeleteByID(r.Context(), id)
		if err != nil {
			serverFailure(w, log, "delete student", err)
			return
		}

		log.Info("student deleted", zap.String("id", id), zap.Int64("deleted", result.DeletedCount))
		response.WriteJSON(w, http.StatusOK, result)
	}
}
