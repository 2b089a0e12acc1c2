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
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req any, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start polling.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartRequest, StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop polling.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// RunOnce processes the input directory a single time.
func (c *Client) RunOnce() (*RunOnceResponse, error) {
	return call[RunOnceRequest, RunOnceResponse](c, "RunOnce", RunOnceRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// History retrieves the status history window.
func (c *Client) History() (*HistoryResponse, error) {
	return call[HistoryRequest, HistoryResponse](c, "History", HistoryRequest{})
}

// Set changes one operator setting.
func (c *Client) Set(key, value string) (*SetResponse, error) {
	return call[SetRequest, SetResponse](c, "Set", SetRequest{Key: key, Value: value})
}

// Config retrieves the live settings.
func (c *Client) Config() (*ConfigResponse, error) {
	return call[ConfigRequest, ConfigResponse](c, "Config", ConfigRequest{})
}

// CatalogList retrieves recent catalog records.
func (c *Client) CatalogList(limit int) (*CatalogListResponse, error) {
	return call[CatalogListRequest, CatalogListResponse](c, "CatalogList", CatalogListRequest{Limit: limit})
}
