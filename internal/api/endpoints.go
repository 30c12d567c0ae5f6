package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ListServers returns every registered server, newest first.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	if err := c.do(ctx, "list servers", http.MethodGet, "/api/servers", nil, &servers); err != nil {
		return nil, err
	}
	if servers == nil {
		servers = []Server{}
	}
	return servers, nil
}

// ListDatabases asks the server's agent for its databases. The service probes
// the agent to answer, so a 5xx here means the agent is unreachable.
func (c *Client) ListDatabases(ctx context.Context, serverID string) ([]string, error) {
	var resp databasesResponse
	err := c.do(ctx, "list databases", http.MethodGet, "/api/servers/"+escape(serverID)+"/databases", nil, &resp)
	if err != nil {
		if apiErr, ok := err.(*Error); ok && apiErr.Kind == KindServer {
			apiErr.Kind = KindUnavailable
		}
		return nil, err
	}
	if resp.Databases == nil {
		resp.Databases = []string{}
	}
	return resp.Databases, nil
}

// CreateServer registers a new server record.
func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (Server, error) {
	var srv Server
	if err := c.do(ctx, "create server", http.MethodPost, "/api/servers", req, &srv); err != nil {
		return Server{}, err
	}
	return srv, nil
}

// InstallAgent asks the service to install the agent over SSH. The service
// answers with the updated server; the returned pointer is nil when it only
// acknowledged. A failure leaves the server record in place.
func (c *Client) InstallAgent(ctx context.Context, serverID string, req InstallAgentRequest) (*Server, error) {
	if err := req.SSHAuth.Validate(); err != nil {
		return nil, &Error{Op: "install agent", Kind: KindValidation, Detail: err.Error(), Err: err}
	}

	var srv Server
	if err := c.do(ctx, "install agent", http.MethodPost, "/api/servers/"+escape(serverID)+"/install-agent", req, &srv); err != nil {
		return nil, err
	}
	if srv.ID == "" {
		return nil, nil
	}
	return &srv, nil
}

// Collect runs a collection on the server and returns the stored report.
// Nil slices are sent as empty arrays.
func (c *Client) Collect(ctx context.Context, serverID string, req CollectRequest) (Report, error) {
	if req.Databases == nil {
		req.Databases = []string{}
	}
	if req.Blocks == nil {
		req.Blocks = []string{}
	}

	var rep Report
	if err := c.do(ctx, "collect", http.MethodPost, "/api/servers/"+escape(serverID)+"/collect", req, &rep); err != nil {
		return Report{}, err
	}
	if rep.ID == "" {
		return Report{}, &Error{Op: "collect", Kind: KindDecode, Err: fmt.Errorf("response has no report id")}
	}
	return rep, nil
}

// LatestReport returns the most recent report stored for the server.
func (c *Client) LatestReport(ctx context.Context, serverID string) (Report, error) {
	var rep Report
	if err := c.do(ctx, "latest report", http.MethodGet, "/api/servers/"+escape(serverID)+"/reports/latest", nil, &rep); err != nil {
		return Report{}, err
	}
	return rep, nil
}

// ListActions returns the recommendations derived from a report.
func (c *Client) ListActions(ctx context.Context, reportID string) ([]ReportAction, error) {
	var actions []ReportAction
	if err := c.do(ctx, "list actions", http.MethodGet, "/api/reports/"+escape(reportID)+"/actions", nil, &actions); err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []ReportAction{}
	}
	return actions, nil
}

// DownloadReportURL returns the URL of the raw report file. It performs no request.
func (c *Client) DownloadReportURL(reportID string) string {
	return c.endpoint("/api/reports/" + escape(reportID) + "/download")
}

// DownloadReport streams the raw report file into w and returns the byte count.
func (c *Client) DownloadReport(ctx context.Context, reportID string, w io.Writer) (int64, error) {
	const op = "download report"
	var written int64

	err := c.guarded(ctx, op, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadReportURL(reportID), nil)
		if err != nil {
			return &Error{Op: op, Kind: KindTransport, Err: err}
		}
		reqID := uuid.NewString()
		req.Header.Set(RequestIDHeader, reqID)
		req.Header.Set("User-Agent", c.userAgent)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &Error{Op: op, Kind: KindTransport, Err: err}
		}
		defer resp.Body.Close()
		c.log.Debug("GET download %s id=%s -> %d (%s)", reportID, reqID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

		if resp.StatusCode >= 400 {
			return c.statusError(op, resp)
		}

		written, err = io.Copy(w, resp.Body)
		if err != nil {
			return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("write report: %w", err)}
		}
		return nil
	})
	return written, err
}
