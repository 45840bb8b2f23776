package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping returns daemon runtime information.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Lectern.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns a segment's status view.
func (c *Client) Status(courseID, segmentID int64) (*StatusResponse, error) {
	var resp StatusResponse
	req := StatusRequest{CourseID: courseID, SegmentID: segmentID}
	if err := c.client.Call("Lectern.Status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns segment summaries, optionally filtered by status.
func (c *Client) List(statuses []string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.client.Call("Lectern.List", ListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start dispatches audio extraction for a segment.
func (c *Client) Start(req StartRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.client.Call("Lectern.Start", req, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// Approve releases the transcription gate.
func (c *Client) Approve(req ApproveRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.client.Call("Lectern.Approve", req, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// Abort resets a segment.
func (c *Client) Abort(req AbortRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.client.Call("Lectern.Abort", req, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// Redo re-runs a terminal segment.
func (c *Client) Redo(req RedoRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.client.Call("Lectern.Redo", req, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// Callback forwards a worker report.
func (c *Client) Callback(req CallbackRequest) (*CallbackResponse, error) {
	var resp CallbackResponse
	if err := c.client.Call("Lectern.Callback", req, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// Jobs returns queued jobs and queue depth.
func (c *Client) Jobs() (*JobsResponse, error) {
	var resp JobsResponse
	if err := c.client.Call("Lectern.Jobs", JobsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns aggregate pipeline counts.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.client.Call("Lectern.Health", HealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sweep triggers a hygiene pass immediately.
func (c *Client) Sweep() (*SweepResponse, error) {
	var resp SweepResponse
	if err := c.client.Call("Lectern.Sweep", SweepRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
