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

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// StartRecording arms the recorder.
func (c *Client) StartRecording(req StartRecordingRequest) (*StartRecordingResponse, error) {
	var resp StartRecordingResponse
	if err := c.call("StartRecording", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopRecording disarms the recorder and reports the saved file.
func (c *Client) StopRecording() (*StopRecordingResponse, error) {
	var resp StopRecordingResponse
	if err := c.call("StopRecording", StopRecordingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsRecording reports whether the recorder is armed.
func (c *Client) IsRecording() (bool, error) {
	var resp IsRecordingResponse
	if err := c.call("IsRecording", IsRecordingRequest{}, &resp); err != nil {
		return false, err
	}
	return resp.Recording, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot retrieves the latest published body.
func (c *Client) Snapshot() (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.call("Snapshot", SnapshotRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recordings lists catalog entries, newest first.
func (c *Client) Recordings(limit int) (*RecordingsResponse, error) {
	var resp RecordingsResponse
	if err := c.call("Recordings", RecordingsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call("Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
