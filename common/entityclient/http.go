package entityclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dpreserve/drreplicator/common/clients"
	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/internal/domain"
)

// HTTPClient implements Client against the preservation API's REST
// surface, rate limited so a large batch does not overwhelm upstream.
type HTTPClient struct {
	http    *clients.HTTPClient
	limiter *rate.Limiter
	baseURL string
	log     *logger.Logger
}

// NewHTTPClient builds an entityclient.Client. ratePerSecond/burst size
// the token bucket guarding every upstream call.
func NewHTTPClient(baseURL, bearerToken string, ratePerSecond float64, burst int, httpClient *http.Client, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		http:    clients.NewHTTPClient(httpClient, bearerToken, httpLoggerAdapter{log}),
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		baseURL: baseURL,
		log:     log,
	}
}

// httpLoggerAdapter satisfies clients.Logger using *logger.Logger's
// variadic slog-style signature.
type httpLoggerAdapter struct{ log *logger.Logger }

func (a httpLoggerAdapter) Info(msg string, kv ...interface{})  { a.log.Info(msg, kv...) }
func (a httpLoggerAdapter) Error(msg string, kv ...interface{}) { a.log.Error(msg, kv...) }
func (a httpLoggerAdapter) Warn(msg string, kv ...interface{})  { a.log.Warn(msg, kv...) }
func (a httpLoggerAdapter) Debug(msg string, kv ...interface{}) { a.log.Debug(msg, kv...) }

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrUpstream, err)
	}
	resp, err := c.http.DoRequest(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrUpstream, path, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d", domain.ErrUpstream, path, resp.StatusCode)
	}
	return resp, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrUpstream, path, err)
	}
	return nil
}

type entityWire struct {
	Ref    uuid.UUID  `json:"ref"`
	Kind   string     `json:"kind"`
	Parent *uuid.UUID `json:"parent,omitempty"`
}

// EntityByTypeAndRef fetches /entities/{kind}/{ref}, optionally passing
// parentHint as a query hint for CO lookups.
func (c *HTTPClient) EntityByTypeAndRef(ctx context.Context, kind domain.EntityKind, ref uuid.UUID, parentHint *uuid.UUID) (domain.Entity, error) {
	path := fmt.Sprintf("/entities/%s/%s", kind.String(), ref.String())
	if parentHint != nil {
		path += "?parent=" + parentHint.String()
	}

	var wire entityWire
	if err := c.getJSON(ctx, path, &wire); err != nil {
		return domain.Entity{}, err
	}

	entityKind := domain.InformationObject
	if wire.Kind == "CO" {
		entityKind = domain.ContentObject
	}
	return domain.Entity{Ref: wire.Ref, Kind: entityKind, Parent: wire.Parent}, nil
}

type bitstreamWire struct {
	Name              string    `json:"name"`
	Fixity            string    `json:"fixity"`
	URL               string    `json:"url"`
	GenerationType    string    `json:"generationType"`
	GenerationVersion int       `json:"generationVersion"`
	ParentRef         uuid.UUID `json:"parentRef"`
}

// BitstreamInfo fetches /content-objects/{coRef}/bitstreams.
func (c *HTTPClient) BitstreamInfo(ctx context.Context, coRef uuid.UUID) ([]domain.BitstreamInfo, error) {
	var wires []bitstreamWire
	if err := c.getJSON(ctx, "/content-objects/"+coRef.String()+"/bitstreams", &wires); err != nil {
		return nil, err
	}

	out := make([]domain.BitstreamInfo, len(wires))
	for i, w := range wires {
		genType := domain.Original
		if w.GenerationType == "Derived" {
			genType = domain.Derived
		}
		out[i] = domain.BitstreamInfo{
			Name:              w.Name,
			Fixity:            w.Fixity,
			URL:               w.URL,
			GenerationType:    genType,
			GenerationVersion: w.GenerationVersion,
			ParentRef:         w.ParentRef,
		}
	}
	return out, nil
}

type identifierWire struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Raw   string `json:"raw"`
}

type metadataWire struct {
	EntityNode      string           `json:"entityNode"`
	Representations []string         `json:"representations,omitempty"`
	Generations     []string         `json:"generations,omitempty"`
	Bitstreams      []string         `json:"bitstreams,omitempty"`
	Identifiers     []identifierWire `json:"identifiers"`
	Links           []string         `json:"links"`
	MetadataNodes   []string         `json:"metadataNodes"`
	EventActions    []string         `json:"eventActions"`
}

func (w metadataWire) common() domain.CommonFragments {
	ids := make([]domain.IdentifierNode, len(w.Identifiers))
	for i, id := range w.Identifiers {
		ids[i] = domain.IdentifierNode{
			Identifier: domain.Identifier{Type: id.Type, Value: id.Value},
			Raw:        domain.RawElement(id.Raw),
		}
	}
	return domain.CommonFragments{
		Identifiers:   ids,
		Links:         toRawElements(w.Links),
		MetadataNodes: toRawElements(w.MetadataNodes),
		EventActions:  toRawElements(w.EventActions),
	}
}

func toRawElements(ss []string) []domain.RawElement {
	out := make([]domain.RawElement, len(ss))
	for i, s := range ss {
		out[i] = domain.RawElement(s)
	}
	return out
}

// MetadataForEntity fetches /entities/{kind}/{ref}/metadata and shapes
// it into the IoMetadata/CoMetadata variant matching entity.Kind.
func (c *HTTPClient) MetadataForEntity(ctx context.Context, entity domain.Entity) (domain.EntityMetadata, error) {
	path := fmt.Sprintf("/entities/%s/%s/metadata", entity.Kind.String(), entity.Ref.String())

	var wire metadataWire
	if err := c.getJSON(ctx, path, &wire); err != nil {
		return domain.EntityMetadata{}, err
	}

	if entity.Kind == domain.InformationObject {
		return domain.EntityMetadata{
			IsIO: true,
			IO: &domain.IoMetadata{
				EntityNode:      domain.RawElement(wire.EntityNode),
				Representations: toRawElements(wire.Representations),
				Common:          wire.common(),
			},
		}, nil
	}

	return domain.EntityMetadata{
		IsIO: false,
		CO: &domain.CoMetadata{
			EntityNode:  domain.RawElement(wire.EntityNode),
			Generations: toRawElements(wire.Generations),
			Bitstreams:  toRawElements(wire.Bitstreams),
			Common:      wire.common(),
		},
	}, nil
}

// RepresentationURLsForIo fetches /information-objects/{ioRef}/representations.
func (c *HTTPClient) RepresentationURLsForIo(ctx context.Context, ioRef uuid.UUID) ([]string, error) {
	var urls []string
	if err := c.getJSON(ctx, "/information-objects/"+ioRef.String()+"/representations", &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// ContentObjectsFromRepresentation fetches the CO list for one
// representation group.
func (c *HTTPClient) ContentObjectsFromRepresentation(ctx context.Context, ioRef uuid.UUID, repType domain.RepresentationType, index int) ([]uuid.UUID, error) {
	path := fmt.Sprintf("/information-objects/%s/representations/%s/%d/content-objects", ioRef.String(), lowerRepType(repType), index)
	var refs []uuid.UUID
	if err := c.getJSON(ctx, path, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func lowerRepType(t domain.RepresentationType) string {
	if t == domain.Access {
		return "access"
	}
	return "preservation"
}

// StreamBitstream copies the bitstream payload at url into sink,
// honoring cancellation.
func (c *HTTPClient) StreamBitstream(ctx context.Context, url string, sink io.Writer) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", domain.ErrUpstream, err)
	}
	resp, err := c.http.DoRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: stream %s: %v", domain.ErrUpstream, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: stream %s: status %d", domain.ErrUpstream, url, resp.StatusCode)
	}
	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("%w: copy %s: %v", domain.ErrUpstream, url, err)
	}
	return nil
}
