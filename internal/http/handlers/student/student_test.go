package student

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aanand-mishra/scholarship-api/internal/storage"
	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"
	"github.com/aanand-mishra/scholarship-api/internal/utils/response"
)

type mockStore struct {
	students map[string]types.Student
	err      error

	lastSpec    update.Spec
	lastOpts    storage.UpdateOptions
	lastReplace types.Student
}

func (m *mockStore) FindAll(ctx context.Context) ([]types.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*types.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *mockStore) Insert(ctx context.Context, s types.Student) (types.Student, error) {
	if m.err != nil {
		return types.Student{}, m.err
	}
	if m.students == nil {
		m.students = make(map[string]types.Student)
	}
	s.ID = "generated"
	m.students[s.ID] = s
	return s, nil
}

func (m *mockStore) ReplaceByID(ctx context.Context, id string, s types.Student, opts storage.UpdateOptions) (types.Student, error) {
	m.lastOpts = opts
	m.lastReplace = s
	if m.err != nil {
		return types.Student{}, m.err
	}
	if _, ok := m.students[id]; !ok {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", apperr.ErrNotFound)
	}
	s.ID = id
	m.students[id] = s
	return s, nil
}

func (m *mockStore) UpdateByID(ctx context.Context, id string, spec update.Spec, opts storage.UpdateOptions) (types.Student, error) {
	m.lastSpec = spec
	m.lastOpts = opts
	if m.err != nil {
		return types.Student{}, m.err
	}
	s, ok := m.students[id]
	if !ok {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", apperr.ErrNotFound)
	}
	return s, nil
}

func (m *mockStore) DeleteByID(ctx context.Context, id string) (types.DeleteResult, error) {
	if m.err != nil {
		return types.DeleteResult{}, m.err
	}
	if _, ok := m.students[id]; !ok {
		return types.DeleteResult{Acknowledged: true}, nil
	}
	delete(m.students, id)
	return types.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

func (m *mockStore) Close(ctx context.Context) error { return nil }

func amy() types.Student {
	return types.Student{
		ID: "s1", Name: "Amy", Age: 19, Major: "Math",
		Scholarship: types.Scholarship{Merit: 50, Other: 10},
	}
}

func serve(h http.HandlerFunc, method, pattern, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+pattern, h)
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, response.StatusError, resp.Status)
	return resp
}

func TestNewCreatesNestedDocument(t *testing.T) {
	store := &mockStore{}
	w := serve(New(store, zap.NewNop()), http.MethodPost, "/students", "/students",
		`{"name":"Amy","age":19,"major":"Math","merit":50,"other":10}`)

	require.Equal(t, http.StatusOK, w.Code)
	var got Saved
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.Msg)
	assert.Equal(t, "generated", got.SavedObject.ID)
	assert.Equal(t, types.Scholarship{Merit: 50, Other: 10}, got.SavedObject.Scholarship)
	assert.JSONEq(t, `{"merit":50,"other":10}`, string(mustField(t, w.Body.Bytes(), "savedObject", "scholarship")))
}

func TestNewRequiresAllFields(t *testing.T) {
	store := &mockStore{}
	w := serve(New(store, zap.NewNop()), http.MethodPost, "/students", "/students",
		`{"name":"Amy","age":19,"major":"Math","merit":50}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, apperr.ErrValidation.Code, resp.Code)
	assert.Equal(t, "field other is required", resp.Error)
	assert.Empty(t, store.students)
}

func TestNewAcceptsZeroAmounts(t *testing.T) {
	w := serve(New(&mockStore{}, zap.NewNop()), http.MethodPost, "/students", "/students",
		`{"name":"A","age":20,"major":"CS","merit":0,"other":0}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      "",
		"malformed":  "{",
		"bad type":   `{"name":"A","age":"old","major":"CS","merit":0,"other":0}`,
		"trailing":   `{"name":"A","age":20,"major":"CS","merit":0,"other":0} junk`,
		"two values": `{"name":"A","age":20,"major":"CS","merit":0,"other":0}{}`,
		"infinite":   `{"name":"A","age":20,"major":"CS","merit":"Infinity","other":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := serve(New(&mockStore{}, zap.NewNop()), http.MethodPost, "/students", "/students", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestNewStoreValidationIs400(t *testing.T) {
	store := &mockStore{err: apperr.Validation(errors.New("age must be at most 150"))}
	w := serve(New(store, zap.NewNop()), http.MethodPost, "/students", "/students",
		`{"name":"A","age":200,"major":"CS","merit":0,"other":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetList(t *testing.T) {
	w := serve(GetList(&mockStore{}, zap.NewNop()), http.MethodGet, "/students", "/students", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(GetList(&mockStore{err: errors.New("down")}, zap.NewNop()), http.MethodGet, "/students", "/students", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetByID(t *testing.T) {
	store := &mockStore{students: map[string]types.Student{"s1": amy()}}

	w := serve(GetByID(store, zap.NewNop()), http.MethodGet, "/students/{id}", "/students/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got types.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, amy(), got)

	w = serve(GetByID(store, zap.NewNop()), http.MethodGet, "/students/{id}", "/students/none", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}

func TestGetByIDMalformedIsServerError(t *testing.T) {
	store := &mockStore{err: fmt.Errorf("FindByID: %w", apperr.InvalidID("zz", errors.New("bad")))}
	w := serve(GetByID(store, zap.NewNop()), http.MethodGet, "/students/{id}", "/students/zz", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReplace(t *testing.T) {
	store := &mockStore{students: map[string]types.Student{"s1": amy()}}
	w := serve(Replace(store, zap.NewNop()), http.MethodPut, "/students/{id}", "/students/s1",
		`{"name":"A","age":20,"major":"CS","merit":100,"other":0}`)

	require.Equal(t, http.StatusOK, w.Code)
	var got Replaced
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, types.Scholarship{Merit: 100, Other: 0}, got.UpdateData.Scholarship)
	assert.Equal(t, "s1", got.UpdateData.ID)
	assert.Equal(t, storage.UpdateOptions{ReturnUpdated: true, Validate: true}, store.lastOpts)
}

func TestReplaceFailures(t *testing.T) {
	full := `{"name":"A","age":20,"major":"CS","merit":100,"other":0}`

	w := serve(Replace(&mockStore{students: map[string]types.Student{}}, zap.NewNop()),
		http.MethodPut, "/students/{id}", "/students/missing", full)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.ErrNotFound.Code, decodeError(t, w).Code)

	w = serve(Replace(&mockStore{}, zap.NewNop()),
		http.MethodPut, "/students/{id}", "/students/s1", `{"name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(Replace(&mockStore{err: apperr.InvalidID("x", errors.New("bad"))}, zap.NewNop()),
		http.MethodPut, "/students/{id}", "/students/x", full)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(Replace(&mockStore{err: errors.New("connection reset")}, zap.NewNop()),
		http.MethodPut, "/students/{id}", "/students/s1", full)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPatchBuildsSelectiveSpec(t *testing.T) {
	store := &mockStore{students: map[string]types.Student{"s1": amy()}}
	w := serve(Patch(store, update.Default(), zap.NewNop()), http.MethodPatch, "/students/{id}", "/students/s1",
		`{"age":21,"merit":300}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, update.Spec{"age": float64(21), "scholarship.merit": float64(300)}, store.lastSpec)
	assert.Equal(t, storage.UpdateOptions{ReturnUpdated: true, Validate: true}, store.lastOpts)

	var got Patched
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.Msg)
	assert.Equal(t, "s1", got.UpdatedData.ID)
}

func TestPatchEmptyObject(t *testing.T) {
	store := &mockStore{students: map[string]types.Student{"s1": amy()}}
	w := serve(Patch(store, update.Default(), zap.NewNop()), http.MethodPatch, "/students/{id}", "/students/s1", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.lastSpec)
}

func TestPatchFailures(t *testing.T) {
	students := map[string]types.Student{"s1": amy()}

	for name, body := range map[string]string{
		"empty":    "",
		"array":    `[{"age":1}]`,
		"null":     `null`,
		"scalar":   `5`,
		"trailing": `{"age":21} junk`,
	} {
		t.Run(name, func(t *testing.T) {
			w := serve(Patch(&mockStore{students: students}, update.Default(), zap.NewNop()),
				http.MethodPatch, "/students/{id}", "/students/s1", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := serve(Patch(&mockStore{students: students}, update.Default(), zap.NewNop()),
		http.MethodPatch, "/students/{id}", "/students/missing", `{"age":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(Patch(&mockStore{err: apperr.Validation(errors.New("merit must be >= 0"))}, update.Default(), zap.NewNop()),
		http.MethodPatch, "/students/{id}", "/students/s1", `{"merit":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "merit must be >= 0")
}

func TestDelete(t *testing.T) {
	store := &mockStore{students: map[string]types.Student{"s1": amy()}}

	w := serve(Delete(store, zap.NewNop()), http.MethodDelete, "/students/{id}", "/students/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"acknowledged":true,"deletedCount":1}`, w.Body.String())

	w = serve(Delete(store, zap.NewNop()), http.MethodDelete, "/students/{id}", "/students/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"acknowledged":true,"deletedCount":0}`, w.Body.String())

	w = serve(Delete(&mockStore{err: apperr.InvalidID("x", errors.New("bad"))}, zap.NewNop()),
		http.MethodDelete, "/students/{id}", "/students/x", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func mustField(t *testing.T, body []byte, path ...string) json.RawMessage {
	t.Helper()
	raw := json.RawMessage(body)
	for _, p := range path {
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &m))
		raw = m[p]
	}
	return raw
}
