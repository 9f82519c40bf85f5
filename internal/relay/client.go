package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
)

// maxResponseBody bounds how much of a relay response is read.
const maxResponseBody = 16 << 20

type submitRequest struct {
	Report string `json:"report"`
}

type submitResponse struct {
	ID  domain.ReportID `json:"id"`
	Seq uint64          `json:"seq"`
}

type wireReport struct {
	Seq    uint64 `json:"seq"`
	Report string `json:"report"`
}

type fetchResponse struct {
	Reports []wireReport `json:"reports"`
}

// HTTP is a ReportTransport backed by a relay server.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the relay at base. A nil client means
// http.DefaultClient.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, HTTP: client}
}

// SubmitReport publishes an encoded report.
func (c *HTTP) SubmitReport(ctx context.Context, raw []byte) error {
	var out submitResponse
	return c.post(ctx, "/reports", submitRequest{Report: crypto.B64(raw)}, &out)
}

// FetchReports returns up to limit reports with sequence numbers above after.
func (c *HTTP) FetchReports(ctx context.Context, after uint64, limit int) ([]domain.FetchedReport, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp fetchResponse
	if err := c.getJSON(ctx, "/reports?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make([]domain.FetchedReport, 0, len(resp.Reports))
	for _, r := range resp.Reports {
		if r.Seq <= after {
			return nil, fmt.Errorf("relay returned seq %d at or below cursor %d", r.Seq, after)
		}
		raw, err := crypto.UnB64(r.Report)
		if err != nil {
			// Undecodable entries still advance the cursor; the engine rejects them.
			raw = nil
		}
		out = append(out, domain.FetchedReport{Seq: r.Seq, Data: raw})
	}
	return out, nil
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTP) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay %s %s: %s: %s", req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out)
}

var _ domain.ReportTransport = (*HTTP)(nil)
