package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/eventpass/internal/pkg/httpretry"
)

func TestSpreadsheetIDFromURL(t *testing.T) {
	tests := []struct {
		link    string
		want    string
		wantErr bool
	}{
		{link: "https://docs.google.com/spreadsheets/d/1AbC-xyz_9/edit#gid=0", want: "1AbC-xyz_9"},
		{link: "https://docs.google.com/spreadsheets/d/1AbC", want: "1AbC"},
		{link: "https://docs.google.com/spreadsheets/d/1AbC?usp=sharing", want: "1AbC"},
		{link: "https://docs.google.com/spreadsheets/u/0/", wantErr: true},
		{link: "https://docs.google.com/spreadsheets/d/", wantErr: true},
		{link: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			got, err := SpreadsheetIDFromURL(tt.link)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnLetters(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for col, want := range cases {
		assert.Equal(t, want, ColumnLetters(col), "col %d", col)
	}
}

func TestCellRef(t *testing.T) {
	assert.Equal(t, "Form_Responses_1!C2", CellRef("Form_Responses_1", 0, 2))
	assert.Equal(t, "Sheet1!AB11", CellRef("Sheet1", 9, 27))
	assert.Equal(t, "'Form Responses 1'!A5", CellRef("Form Responses 1", 3, 0))
	assert.Equal(t, "'Bob''s'!A2", CellRef("Bob's", 0, 0))
}

func TestDefaultRange(t *testing.T) {
	assert.Equal(t, "Form_Responses_1!A:ZZ", DefaultRange("Form_Responses_1"))
	assert.Equal(t, "'Form Responses 1'!A:ZZ", DefaultRange("Form Responses 1"))
}

func TestReadAll_QuotesDefaultRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spreadsheets/sheet-id/values/'Form Responses 1'!A:ZZ", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"values": [["Name"]]}`))
	}))
	defer srv.Close()

	headers, _, err := NewClient(srv.Client(), srv.URL, "sheet-id", "Form Responses 1", "").ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Name"}, headers)
}

func TestReadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/spreadsheets/sheet-id/values/Form_Responses_1!A:ZZ", r.URL.Path)
		assert.Equal(t, "ROWS", r.URL.Query().Get("majorDimension"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"range": "Form_Responses_1!A1:F3",
			"majorDimension": "ROWS",
			"values": [
				["Timestamp", "Name", "Email", "Ticket Status", "Email Status", "Attendee ID"],
				["1/1/2024", "Ada Lovelace", "ada@example.com"],
				["1/2/2024", "Grace Hopper", "grace@example.com", "Sent", "Sent", "id-2"]
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "sheet-id", "Form_Responses_1", "")
	headers, rows, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, headers, 6)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1/1/2024", "Ada Lovelace", "ada@example.com"}, rows[0])
	assert.Equal(t, "id-2", rows[1][5])
}

func TestReadAll_EmptySheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"range": "Form_Responses_1!A1:Z1000", "majorDimension": "ROWS"}`))
	}))
	defer srv.Close()

	headers, rows, err := NewClient(srv.Client(), srv.URL, "sheet-id", "Form_Responses_1", "").ReadAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, headers)
	assert.Nil(t, rows)
}

func TestReadAll_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "The caller does not have permission"}}`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.Client(), srv.URL, "sheet-id", "Form_Responses_1", "").ReadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "does not have permission")
}

func TestWriteCell(t *testing.T) {
	var got valueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/spreadsheets/sheet-id/values/Form_Responses_1!F4", r.URL.Path)
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"updatedCells": 1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "sheet-id", "Form_Responses_1", "")
	require.NoError(t, c.WriteCell(context.Background(), 2, 5, "3f2a-uuid"))
	assert.Equal(t, [][]string{{"3f2a-uuid"}}, got.Values)
	assert.Equal(t, "Form_Responses_1!F4", got.Range)
}

func TestWriteCell_RetriesQuotaErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var vr valueRange
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
		assert.Equal(t, "Sent", vr.Values[0][0])
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	doer := httpretry.NewRetryClient(srv.Client(), 2).WithDelays(time.Millisecond, 5*time.Millisecond)
	c := NewClient(doer, srv.URL, "sheet-id", "Form_Responses_1", "")
	require.NoError(t, c.WriteCell(context.Background(), 0, 3, "Sent"))
	assert.Equal(t, 2, calls)
}

func TestWriteCell_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewClient(srv.Client(), srv.URL, "sheet-id", "Form_Responses_1", "").WriteCell(context.Background(), 0, 0, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Form_Responses_1!A2")
}

func TestServiceAccountClient_RejectsBadJSON(t *testing.T) {
	_, err := ServiceAccountClient(context.Background(), []byte(`{"type":"authorized_user"}`), time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidURL))
}
