package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/rag"
)

const (
	payloadVectorIDKey = "_vector_id"
	maxErrorBodyBytes  = 1024
	defaultDistance    = "Cosine"
)

var pointIDNamespaceUUID = uuid.MustParse("6b3f0c1e-93a4-4f59-8a57-2f0d6c1f4e21")

type Config struct {
	URL        string
	APIKey     string
	Collection string
	VectorDim  int
	// IndexedKeys get a keyword payload index so filtered search stays fast.
	IndexedKeys []string
	HTTPClient  *http.Client
}

// VectorIndex stores chunk vectors in one Qdrant collection over the REST API.
type VectorIndex struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorIndex(log *logger.Logger, cfg Config) (*VectorIndex, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, opErr("config", OperationErrorValidation, "qdrant url is required", nil)
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, opErr("config", OperationErrorValidation, "qdrant collection is required", nil)
	}
	if cfg.VectorDim <= 0 {
		return nil, opErr("config", OperationErrorValidation, "vector dimension must be positive", nil)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &VectorIndex{
		log:     log.With("service", "QdrantVectorIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    client,
	}, nil
}

// EnsureCollection creates the collection and payload indexes when missing
// and verifies the vector size when present.
func (x *VectorIndex) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := x.doJSON(ctx, op, http.MethodGet, x.collectionPath(""), nil, &info)
	var typed *OperationError
	switch {
	case err == nil:
		if size := info.Config.Params.Vectors.Size; size != 0 && size != x.cfg.VectorDim {
			return opErr(op, OperationErrorValidation, fmt.Sprintf(
				"qdrant collection %q vector size mismatch: expected=%d actual=%d",
				x.cfg.Collection, x.cfg.VectorDim, size,
			), nil)
		}
	case errors.As(err, &typed) && typed.StatusCode == http.StatusNotFound:
		create := map[string]any{
			"vectors": map[string]any{
				"size":     x.cfg.VectorDim,
				"distance": defaultDistance,
			},
		}
		if err := x.doJSON(ctx, op, http.MethodPut, x.collectionPath(""), create, nil); err != nil {
			return err
		}
		x.log.Info("qdrant collection created", "collection", x.cfg.Collection, "vector_dim", x.cfg.VectorDim)
	default:
		return err
	}

	for _, key := range x.cfg.IndexedKeys {
		req := map[string]any{"field_name": key, "field_schema": "keyword"}
		if err := x.doJSON(ctx, op, http.MethodPut, x.collectionPath("/index?wait=true"), req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (x *VectorIndex) Upsert(ctx context.Context, records []rag.VectorRecord) error {
	const op = "upsert"
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if len(r.Values) != x.cfg.VectorDim {
			return opErr(op, OperationErrorValidation, fmt.Sprintf(
				"vector %q dimension mismatch: expected=%d got=%d", id, x.cfg.VectorDim, len(r.Values),
			), nil)
		}
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[payloadVectorIDKey] = id
		points = append(points, map[string]any{
			"id":      pointID(id),
			"vector":  r.Values,
			"payload": payload,
		})
	}
	return x.doJSON(ctx, op, http.MethodPut, x.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (x *VectorIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]rag.VectorMatch, error) {
	const op = "query"
	if len(vector) != x.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation, fmt.Sprintf(
			"query vector dimension mismatch: expected=%d got=%d", x.cfg.VectorDim, len(vector),
		), nil)
	}
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(filter) > 0 {
		req["filter"] = translateFilter(filter)
	}

	var raw []qdrantSearchResultItem
	if err := x.doJSON(ctx, op, http.MethodPost, x.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]rag.VectorMatch, 0, len(raw))
	for _, item := range raw {
		id, _ := item.Payload[payloadVectorIDKey].(string)
		if id == "" {
			id = decodePointID(item.ID)
		}
		meta := make(map[string]any, len(item.Payload))
		for k, v := range item.Payload {
			if k != payloadVectorIDKey {
				meta[k] = v
			}
		}
		out = append(out, rag.VectorMatch{ID: id, Score: item.Score, Metadata: meta})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Ping checks the server readiness endpoint.
func (x *VectorIndex) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/readyz", nil)
	if err != nil {
		return opErr("ping", OperationErrorTransportFailed, "build ready request failed", err)
	}
	x.setAuth(req)
	resp, err := x.http.Do(req)
	if err != nil {
		return classifyHTTPCallError("ping", "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  "ping",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

// translateFilter turns an equality map into a Qdrant must filter. Keys are
// sorted so the request body is stable.
func translateFilter(filter map[string]any) map[string]any {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": filter[k]},
		})
	}
	return map[string]any{"must": must}
}

func (x *VectorIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	x.setAuth(req)

	resp, err := x.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (x *VectorIndex) setAuth(req *http.Request) {
	if key := strings.TrimSpace(x.cfg.APIKey); key != "" {
		req.Header.Set("api-key", key)
	}
}

func (x *VectorIndex) collectionPath(suffix string) string {
	return "/collections/" + x.cfg.Collection + suffix
}

// pointID derives a stable UUID because Qdrant only accepts UUIDs or
// unsigned integers as point ids.
func pointID(vectorID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(vectorID)).String()
}

func decodePointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
