// Package ipfs pins NFT images and metadata documents to IPFS.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/layer-3/mintbox/core"
)

const DefaultGateway = "https://ipfs.io/ipfs/"

// PinataClient pins content through the Pinata pinning API
type PinataClient struct {
	baseURL string
	gateway string
	jwt     string
	http    *http.Client
}

// NewPinataClient creates a Pinata client authenticated with a JWT
func NewPinataClient(baseURL, gateway, jwt string) *PinataClient {
	if gateway == "" {
		gateway = DefaultGateway
	}
	return &PinataClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		gateway: gateway,
		jwt:     jwt,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

// PinFile uploads r as a single file
func (p *PinataClient) PinFile(ctx context.Context, name, contentType string, r io.Reader) (core.PinnedObject, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return core.PinnedObject{}, fmt.Errorf("failed to read upload: %w", err)
	}

	meta, err := json.Marshal(pinataMetadata{Name: name})
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("failed to marshal pin metadata: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return core.PinnedObject{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return core.PinnedObject{}, fmt.Errorf("failed to build upload: %w", err)
	}

	return p.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body)
}

// PinJSON uploads v as a JSON document
func (p *PinataClient) PinJSON(ctx context.Context, name string, v any) (core.PinnedObject, error) {
	payload, err := json.Marshal(struct {
		Content  any            `json:"pinataContent"`
		Metadata pinataMetadata `json:"pinataMetadata"`
	}{v, pinataMetadata{Name: name}})
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("failed to marshal document: %w", err)
	}
	return p.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
}

func (p *PinataClient) pin(ctx context.Context, path, contentType string, body io.Reader) (core.PinnedObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("%w: %v", core.ErrPinning, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.http.Do(req)
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("%w: %v", core.ErrPinning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.PinnedObject{}, fmt.Errorf("%w: pinata returned %d: %s", core.ErrPinning, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.PinnedObject{}, fmt.Errorf("%w: failed to decode response: %v", core.ErrPinning, err)
	}
	if out.IpfsHash == "" {
		return core.PinnedObject{}, fmt.Errorf("%w: response carried no hash", core.ErrPinning)
	}

	return Object(out.IpfsHash, p.gateway), nil
}

// Object builds the ipfs:// and gateway URLs for cid
func Object(cid, gateway string) core.PinnedObject {
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return core.PinnedObject{
		CID:        cid,
		URL:        "ipfs://" + cid,
		GatewayURL: gateway + cid,
	}
}
