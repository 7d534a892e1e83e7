package verifierclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxzoid/hookmarket/internal/domain"
)

func TestVerifyPostsAndDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "wo_1", req.WorkOrder.Id)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(VerifyResponse{ //nolint:errcheck
			Report:           domain.VerificationReport{Status: domain.ReportPass},
			MilestonesPassed: []string{"M1_COMPILE_OK"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Verify(context.Background(), domain.WorkOrder{Id: "wo_1"}, domain.Submission{Id: "sub_1"})
	require.NoError(t, err)
	require.Equal(t, domain.ReportPass, resp.Report.Status)
	require.Equal(t, []string{"M1_COMPILE_OK"}, resp.MilestonesPassed)
}

func TestVerifyReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom")) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Verify(context.Background(), domain.WorkOrder{Id: "wo_1"}, domain.Submission{})
	require.Error(t, err)
}

func TestChallengeDecodesOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/challenge", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(challengeResponse{Outcome: ChallengeSuccess}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	outcome, err := c.Challenge(context.Background(), domain.WorkOrder{Id: "wo_1"}, domain.Submission{}, domain.Challenge{})
	require.NoError(t, err)
	require.Equal(t, ChallengeSuccess, outcome)
}
