// Package api uploads finished sessions to a shot statistics server.
//
// An upload is a multipart body with two parts: "summary", a JSON tally of the
// session the server can index without parsing the file, and "session", the
// session file as written by the jsonfile backend.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/puckstats/shotrecorder/pkg/core"
)

const sessionsPath = "/api/v1/sessions"

// TeamTally counts the attempts of one team's shooters.
type TeamTally struct {
	Attempts int `json:"attempts"`
	OnGoal   int `json:"onGoal"`
	Goals    int `json:"goals"`
}

// SessionSummary is the metadata part sent ahead of the session file.
type SessionSummary struct {
	SessionID       string               `json:"sessionId"`
	Server          string               `json:"server"`
	Start           time.Time            `json:"start"`
	Shots           int                  `json:"shots"`
	ByType          map[string]int       `json:"byType"`
	ByTeam          map[string]TeamTally `json:"byTeam"`
	Periods         int                  `json:"periods"`
	Overtime        bool                 `json:"overtime"`
	PhysicsCaptured bool                 `json:"physicsCaptured"`
}

// Summarize tallies sess by shot type and shooting team.
func Summarize(sess *core.Session) SessionSummary {
	sum := SessionSummary{
		SessionID:       sess.ID.String(),
		Server:          sess.ServerName,
		Start:           sess.Start.UTC(),
		Shots:           len(sess.Shots),
		ByType:          map[string]int{},
		ByTeam:          map[string]TeamTally{},
		PhysicsCaptured: sess.Physics != nil,
	}
	for _, shot := range sess.Shots {
		sum.ByType[shot.Type.String()]++

		team := shot.Shooter.Team.String()
		tally := sum.ByTeam[team]
		tally.Attempts++
		switch shot.Type {
		case core.ShotTypeOnGoal:
			tally.OnGoal++
		case core.ShotTypeGoal:
			tally.OnGoal++
			tally.Goals++
		}
		sum.ByTeam[team] = tally

		if shot.Period > sum.Periods {
			sum.Periods = shot.Period
		}
		if shot.IsOvertime {
			sum.Overtime = true
		}
	}
	return sum
}

// Client handles communication with the statistics server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the statistics server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload posts the session file at filePath together with its summary.
// The server answers 201 for a new session and 200 when it already has it.
func (c *Client) Upload(filePath string, summary SessionSummary) error {
	meta, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		if err := writeJSONPart(writer, "summary", "", meta); err != nil {
			errCh <- fmt.Errorf("failed to write summary: %w", err)
			pw.CloseWithError(err)
			return
		}
		part, err := createJSONPart(writer, "session", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create session part: %w", err)
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			pw.CloseWithError(err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+sessionsPath, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Session-ID", summary.SessionID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload of session %s returned status %d", summary.SessionID, resp.StatusCode)
	}
	return nil
}

func createJSONPart(w *multipart.Writer, name, filename string) (io.Writer, error) {
	disposition := fmt.Sprintf(`form-data; name="%s"`, name)
	if filename != "" {
		disposition += fmt.Sprintf(`; filename="%s"`, strings.ReplaceAll(filename, `"`, "_"))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Type", "application/json")
	return w.CreatePart(h)
}

func writeJSONPart(w *multipart.Writer, name, filename string, body []byte) error {
	part, err := createJSONPart(w, name, filename)
	if err != nil {
		return err
	}
	_, err = part.Write(body)
	return err
}
