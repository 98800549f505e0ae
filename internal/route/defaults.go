package route

import "net/http"

// Default returns the built-in route table of the recruiting web tier.
// Paths mirror the backend API one to one.
func Default() []Spec {
	return []Spec{
		// Auth
		{
			Name: "auth-login", Method: http.MethodPost, Path: "/auth/login",
			Body: BodyJSON, RequiredFields: []string{"email", "password"},
			Renames: []Rename{{From: "email", To: "username"}}, SuccessFlag: true,
		},
		{
			Name: "auth-register", Method: http.MethodPost, Path: "/auth/register",
			Body: BodyJSON, RequiredFields: []string{"email", "password"},
			Renames: []Rename{{From: "fullName", To: "full_name"}}, SuccessFlag: true,
		},
		{Name: "auth-me", Method: http.MethodGet, Path: "/auth/me", CookieAuth: true},
		{Name: "auth-logout", Method: http.MethodPost, Path: "/auth/logout", CookieAuth: true, SuccessFlag: true},

		// Job descriptions
		{
			Name: "job-descriptions-list", Method: http.MethodGet, Path: "/job-descriptions",
			Query: []string{"skip", "limit", "status", "search"}, CookieAuth: true,
			Flatten: &Flatten{Source: "company.name", Target: "company_name"},
		},
		{
			Name: "job-descriptions-create", Method: http.MethodPost, Path: "/job-descriptions",
			Body: BodyMultipart, CookieAuth: true,
		},
		{Name: "job-descriptions-get", Method: http.MethodGet, Path: "/job-descriptions/{id}", CookieAuth: true},
		{
			Name: "job-descriptions-update", Method: http.MethodPut, Path: "/job-descriptions/{id}",
			Body: BodyJSON, CookieAuth: true,
		},
		{Name: "job-descriptions-delete", Method: http.MethodDelete, Path: "/job-descriptions/{id}", CookieAuth: true},
		{Name: "job-descriptions-publish", Method: http.MethodPost, Path: "/job-descriptions/{id}/publish", CookieAuth: true},
		{
			Name: "job-descriptions-candidates", Method: http.MethodGet, Path: "/job-descriptions/{id}/candidates",
			Query: []string{"status", "min_score", "limit"}, CookieAuth: true,
			Flatten: &Flatten{List: "items", Source: "evaluation.score", Target: "score"},
		},

		// Candidates
		{
			Name: "candidates-list", Method: http.MethodGet, Path: "/candidates",
			Query: []string{"job_id", "skip", "limit", "search"}, CookieAuth: true,
		},
		{
			Name: "candidates-create", Method: http.MethodPost, Path: "/candidates",
			Body: BodyMultipart, CookieAuth: true,
			Renames: []Rename{{From: "resume", To: "resume_file"}},
			Derive:  []Derivation{{From: "experience", To: "experience_years", Kind: DeriveInt, Default: "0"}},
		},
		{Name: "candidates-get", Method: http.MethodGet, Path: "/candidates/{id}", CookieAuth: true},
		{
			Name: "candidates-status", Method: http.MethodPatch, Path: "/candidates/{id}/status",
			Body: BodyJSON, RequiredFields: []string{"stage"},
			Renames: []Rename{{From: "stage", To: "status"}}, CookieAuth: true,
		},
		{Name: "candidates-delete", Method: http.MethodDelete, Path: "/candidates/{id}", CookieAuth: true},
		{Name: "candidates-resume", Method: http.MethodGet, Path: "/candidates/{id}/resume", CookieAuth: true},
		{Name: "candidates-evaluations", Method: http.MethodGet, Path: "/candidates/{id}/evaluations", CookieAuth: true},

		// Evaluations
		{
			Name: "evaluations-create", Method: http.MethodPost, Path: "/evaluations",
			Body: BodyJSON, RequiredFields: []string{"candidate_id", "job_id"},
			Inject: map[string]any{"source": "web"}, CookieAuth: true,
		},
		{Name: "evaluations-get", Method: http.MethodGet, Path: "/evaluations/{id}", CookieAuth: true},
		{
			Name: "evaluations-feedback", Method: http.MethodPost, Path: "/evaluations/{id}/feedback",
			Body: BodyJSON, RequiredFields: []string{"comment"}, CookieAuth: true,
		},

		// Matching
		{
			Name: "matching-run", Method: http.MethodPost, Path: "/matching/run",
			Body: BodyJSON, RequiredFields: []string{"job_id"}, CookieAuth: true,
		},
		{
			Name: "matching-results", Method: http.MethodGet, Path: "/matching/{job_id}/results",
			Query: []string{"limit", "threshold"}, CookieAuth: true,
			Flatten: &Flatten{List: "matches", Source: "candidate.name", Target: "candidate_name"},
		},

		// Interviews
		{
			Name: "interviews-list", Method: http.MethodGet, Path: "/interviews",
			Query: []string{"candidate_id", "job_id"}, CookieAuth: true,
		},
		{
			Name: "interviews-create", Method: http.MethodPost, Path: "/interviews",
			Body: BodyJSON, RequiredFields: []string{"candidate_id", "scheduledAt"},
			Renames: []Rename{{From: "scheduledAt", To: "scheduled_at"}}, CookieAuth: true,
		},
		{
			Name: "interviews-update", Method: http.MethodPatch, Path: "/interviews/{id}",
			Body: BodyJSON, Renames: []Rename{{From: "scheduledAt", To: "scheduled_at"}}, CookieAuth: true,
		},

		// Notifications
		{
			Name: "notifications-list", Method: http.MethodGet, Path: "/notifications",
			Query: []string{"unread_only", "limit"}, CookieAuth: true, SuccessFlag: true,
		},
		{
			Name: "notifications-read", Method: http.MethodPatch, Path: "/notifications/{id}/read",
			CookieAuth: true, SuccessFlag: true,
		},
		{
			Name: "notifications-read-all", Method: http.MethodPost, Path: "/notifications/read-all",
			CookieAuth: true, SuccessFlag: true,
		},
		{Name: "notifications-delete", Method: http.MethodDelete, Path: "/notifications/{id}", CookieAuth: true, SuccessFlag: true},

		// Dashboard
		{Name: "dashboard-stats", Method: http.MethodGet, Path: "/dashboard/stats", Query: []string{"period"}, CookieAuth: true},
	}
}
