// Reader is a small client of the http api, used by tests and tooling.

package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/node"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port

	client *http.Client
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
		client:     http.DefaultClient,
	}
}

// StatusError is a non 2xx answer of the api.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

func (hr *HttpReader) url(path string) string {
	return "http://" + hr.serverIP + ":" + hr.serverPort + path
}

// do sends the request and decodes a json answer into out, if given.
func (hr *HttpReader) do(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, hr.url(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hr.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Read the response body
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return &StatusError{Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}

func (hr *HttpReader) GetHello() (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := hr.do(http.MethodGet, ROUTE_HELLO, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (hr *HttpReader) ListSwaps() ([]map[string]interface{}, error) {
	var out struct {
		Swaps []map[string]interface{} `json:"swaps"`
	}
	if err := hr.do(http.MethodGet, ROUTE_SWAPS, nil, &out); err != nil {
		return nil, err
	}
	return out.Swaps, nil
}

func (hr *HttpReader) Initiate(in node.InitiateRequest) (uuid.UUID, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	if err := hr.do(http.MethodPost, ROUTE_RFC003, in, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

func (hr *HttpReader) GetSwap(id uuid.UUID) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := hr.do(http.MethodGet, ROUTE_RFC003+"/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (hr *HttpReader) Accept(id uuid.UUID, in node.AcceptRequest) error {
	return hr.do(http.MethodPost, ROUTE_RFC003+"/"+id.String()+"/accept", in, nil)
}

func (hr *HttpReader) Decline(id uuid.UUID, reason string) error {
	return hr.do(http.MethodPost, ROUTE_RFC003+"/"+id.String()+"/decline", node.DeclineBody{Reason: reason}, nil)
}

// GetAction fetches one action; query carries address and fee_per_byte
// for bitcoin spends.
func (hr *HttpReader) GetAction(id uuid.UUID, kind action.Kind, query url.Values) (map[string]interface{}, error) {
	path := ROUTE_RFC003 + "/" + id.String() + "/" + kind.String()
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out map[string]interface{}
	if err := hr.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (hr *HttpReader) GetPeers() ([]string, error) {
	var out struct {
		Peers []string `json:"peers"`
	}
	if err := hr.do(http.MethodGet, ROUTE_PEERS, nil, &out); err != nil {
		return nil, err
	}
	return out.Peers, nil
}
