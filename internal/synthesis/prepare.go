package synthesis

import (
	"context"
	"encoding/json"
)

type prepareRequest struct {
	Image []byte `json:"image"`
}

type prepareResponse struct {
	Conditioning []byte `json:"conditioning"`
	Error        string `json:"error"`
}

// Prepare derives conditioning data for an input image. The backend
// shares the pipeline endpoint, so HTTPPipeline satisfies Preparer.
func (p *HTTPPipeline) Prepare(ctx context.Context, image []byte) ([]byte, error) {
	if len(image) == 0 {
		return nil, Wrap(ErrValidation, "prepare", "image required", nil)
	}
	body, err := p.post(ctx, "/v1/prepare", prepareRequest{Image: image})
	if err != nil {
		return nil, err
	}
	var decoded prepareResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, Wrap(ErrExternalTool, "prepare", "decode response", err)
	}
	if decoded.Error != "" {
		return nil, Wrap(ErrExternalTool, "prepare", decoded.Error, nil)
	}
	if len(decoded.Conditioning) == 0 {
		return nil, Wrap(ErrExternalTool, "prepare", "empty conditioning in response", nil)
	}
	return decoded.Conditioning, nil
}
