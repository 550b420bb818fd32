package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/diabepredict/diabepredict/internal/auth"
	"github.com/diabepredict/diabepredict/internal/model"
	"github.com/diabepredict/diabepredict/internal/score"
	"github.com/diabepredict/diabepredict/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return SetupRouter(st, score.NewHeuristicScorer(), tokens)
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	w := doJSON(router, "POST", "/api/v1/auth/register", "", gin.H{
		"username": username,
		"password": "s3cret1",
		"email":    username + "@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(router, "POST", "/api/v1/auth/login", "", gin.H{
		"username": username,
		"password": "s3cret1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("no token in login response: %s", w.Body.String())
	}
	return resp.Token
}

func validRecord() gin.H {
	return gin.H{
		"age":           45,
		"pregnancies":   0,
		"bmi":           25.0,
		"glucose":       100,
		"bloodPressure": 80,
		"ldl":           100,
		"hdl":           50,
		"triglycerides": 150,
		"whr":           0.8,
		"familyHistory": false,
		"medicationUse": false,
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(router, "GET", "/healthz", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz response: %d %s", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(router, "GET", "/readyz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing fields", gin.H{"username": "alice"}},
		{"short password", gin.H{"username": "alice", "password": "abc", "email": "a@b.com"}},
		{"bad email", gin.H{"username": "alice", "password": "s3cret1", "email": "not-an-email"}},
		{"email without dotted domain", gin.H{"username": "alice", "password": "s3cret1", "email": "a@b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/api/v1/auth/register", "", tc.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), "validation_failed") {
				t.Fatalf("expected validation_failed, got %s", w.Body.String())
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "alice")

	w := doJSON(router, "POST", "/api/v1/auth/register", "", gin.H{
		"username": "alice",
		"password": "another1",
		"email":    "other@example.com",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "alice")

	w := doJSON(router, "POST", "/api/v1/auth/login", "", gin.H{
		"username": "alice",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doJSON(router, "POST", "/api/v1/auth/login", "", gin.H{
		"username": "ghost",
		"password": "whatever",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestAssessRequiresAuth(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(router, "POST", "/api/v1/assessments", "", validRecord())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAssessFlow(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := doJSON(router, "POST", "/api/v1/assessments", token, validRecord())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AnalysisID int64            `json:"analysisId"`
		Assessment model.Assessment `json:"assessment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AnalysisID == 0 {
		t.Fatal("expected persisted analysis id")
	}
	if resp.Assessment.Band != model.RiskModerate {
		t.Fatalf("expected moderate band for baseline record, got %s (p=%g)",
			resp.Assessment.Band, resp.Assessment.Probability)
	}
	if len(resp.Assessment.Recommendations) == 0 || resp.Assessment.Horizon == "" {
		t.Fatalf("incomplete assessment: %+v", resp.Assessment)
	}

	// History shows the persisted analysis, detail returns its parameters.
	w = doJSON(router, "GET", "/api/v1/analyses", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history failed: %d %s", w.Code, w.Body.String())
	}
	var history struct {
		Analyses []model.Analysis `json:"analyses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Analyses) != 1 || history.Analyses[0].ID != resp.AnalysisID {
		t.Fatalf("unexpected history: %+v", history.Analyses)
	}

	w = doJSON(router, "GET", fmt.Sprintf("/api/v1/analyses/%d", resp.AnalysisID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail failed: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `\"age\":45`) && !strings.Contains(w.Body.String(), `"age":45`) {
		t.Fatalf("expected stored parameters in detail: %s", w.Body.String())
	}
}

func TestAssessValidation(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	rec := validRecord()
	rec["bloodPressure"] = 500
	w := doJSON(router, "POST", "/api/v1/assessments", token, rec)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for validation failure, got %d", w.Code)
	}
	body := strings.ToLower(w.Body.String())
	if !strings.Contains(body, "validation_failed") || !strings.Contains(body, "bloodpressure") {
		t.Fatalf("expected validation error response, got %s", w.Body.String())
	}
}

func TestAnalysesIsolatedPerUser(t *testing.T) {
	router := newTestRouter(t)
	aliceToken := registerAndLogin(t, router, "alice")
	bobToken := registerAndLogin(t, router, "bob")

	w := doJSON(router, "POST", "/api/v1/assessments", aliceToken, validRecord())
	if w.Code != http.StatusOK {
		t.Fatalf("assess failed: %d", w.Code)
	}
	var resp struct {
		AnalysisID int64 `json:"analysisId"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	w = doJSON(router, "GET", fmt.Sprintf("/api/v1/analyses/%d", resp.AnalysisID), bobToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user's analysis, got %d", w.Code)
	}
}

func uploadCSV(router *gin.Engine, token, filename, content, query string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", filename)
	fw.Write([]byte(content))
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/v1/assessments/batch"+query, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const cohortCSV = `Age,Pregnancies,BMI,Glucose,BloodPressure,LDL,HDL,Triglycerides,WHR,FamilyHistory,MedicationUse
32,0,26.5,92,72,110,55,120,0.78,0,0
61,0,31.2,142,92,158,38,240,0.91,1,1
`

func TestBatchAssess(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := uploadCSV(router, token, "cohort.csv", cohortCSV, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AnalysisID int64 `json:"analysisId"`
		Report     struct {
			BatchID string `json:"batchId"`
			Summary struct {
				Scored   int `json:"scored"`
				HighRisk int `json:"highRisk"`
			} `json:"summary"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report.Summary.Scored != 2 || resp.Report.Summary.HighRisk != 1 {
		t.Fatalf("unexpected summary: %+v", resp.Report.Summary)
	}

	// The upload lands in history as a batch analysis.
	w = doJSON(router, "GET", "/api/v1/analyses?type=batch", token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rows scored") {
		t.Fatalf("expected batch analysis in history: %d %s", w.Code, w.Body.String())
	}
}

func TestBatchAssessCSVExport(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := uploadCSV(router, token, "cohort.csv", cohortCSV, "?format=csv")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "cohort_results.csv") {
		t.Fatalf("unexpected disposition: %s", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
}

func TestBatchAssessMissingColumns(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := uploadCSV(router, token, "cohort.csv", "Age,BMI\n45,25\n", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "missing_columns") || !strings.Contains(w.Body.String(), "Glucose") {
		t.Fatalf("expected missing columns listed: %s", w.Body.String())
	}
}

func TestBatchAssessRequiresFile(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := doJSON(router, "POST", "/api/v1/assessments/batch", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestModelInfo(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(router, "GET", "/api/v1/model", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var info model.ModelInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Name != "heuristic-v1" || len(info.Features) == 0 {
		t.Fatalf("unexpected model info: %+v", info)
	}
}

func TestListAnalysesRejectsUnknownType(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice")

	w := doJSON(router, "GET", "/api/v1/analyses?type=cohort", token, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}
