// internal/gen/providers/gemini/gemini.go
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/douju/douju-editor/internal/gen"
	"github.com/douju/douju-editor/internal/models"
)

func init() {
	gen.Register("gemini", func() gen.Provider {
		return &Provider{
			baseURL:      "https://generativelanguage.googleapis.com/v1beta",
			textModel:    "gemini-3-flash-preview",
			imageModel:   "gemini-2.5-flash-image",
			videoModel:   "veo-3.1-fast-generate-preview",
			audioModel:   "gemini-2.5-flash-native-audio-preview-09-2025",
			pollInterval: 10 * time.Second,
		}
	})
}

// Provider talks to the Gemini REST API. Text and structured generation go
// through generateContent; video goes through a long-running Veo operation
// that is polled until done.
type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	textModel    string
	imageModel   string
	videoModel   string
	audioModel   string
	pollInterval time.Duration
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("gemini api key not provided")
	}
	p.apiKey = apiKey
	p.client = &http.Client{}

	if v := config["base_url"]; v != "" {
		p.baseURL = v
	}
	if v := config["text_model"]; v != "" {
		p.textModel = v
	}
	if v := config["image_model"]; v != "" {
		p.imageModel = v
	}
	if v := config["video_model"]; v != "" {
		p.videoModel = v
	}
	if v := config["audio_model"]; v != "" {
		p.audioModel = v
	}
	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

// generateContent posts a request body to a model's generateContent endpoint
// and returns the decoded candidate response.
func (p *Provider) generateContent(ctx context.Context, model string, body map[string]interface{}) (*contentResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var errorResp map[string]interface{}
		respBody, _ := io.ReadAll(httpResp.Body)
		if err := json.Unmarshal(respBody, &errorResp); err == nil {
			if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
				return nil, fmt.Errorf("gemini API error (%d): %v", httpResp.StatusCode, errorObj["message"])
			}
		}
		return nil, fmt.Errorf("gemini API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var response contentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}
	if len(response.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}
	return &response, nil
}

type contentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (r *contentResponse) text() string {
	var out string
	for _, part := range r.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

// inlineDataURI finds the first inline binary part and packages it as a data
// URI. The image part is not necessarily the first part.
func (r *contentResponse) inlineDataURI() (string, bool) {
	for _, part := range r.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			return fmt.Sprintf("data:%s;base64,%s", part.InlineData.MimeType, part.InlineData.Data), true
		}
	}
	return "", false
}

func userContents(prompt string) []map[string]interface{} {
	return []map[string]interface{}{
		{"role": "user", "parts": []map[string]string{{"text": prompt}}},
	}
}

func topologyInstruction(t gen.Topology) string {
	switch t {
	case gen.TopologySerial:
		return "TOPOLOGY TYPE B (Serial Tasks): Create a sequence of distinct problems/puzzles. Node A must be solved to reach Node B. Strictly linear flow but with detailed task descriptions."
	case gen.TopologyWeb:
		return "TOPOLOGY TYPE C (Complex Web): Create a highly interconnected graph. Decisions in Node A affect Node C. Multiple paths cross over. Multiple distinct endings."
	case gen.TopologyDivergent:
		return "TOPOLOGY TYPE D (Divergent): Create a single main stem for the first 3 layers, building context. Then, at the Climax node, split into 3-4 radically different Endings."
	default:
		return "TOPOLOGY TYPE A (Linear/Survival): Create a main straight line from Start to End. Branches should mostly lead to 'Game Over' (dead ends) or 'Hidden Items'. Main path flows vertically. Dead ends branch horizontally."
	}
}

var storyNodeSchema = map[string]interface{}{
	"type": "ARRAY",
	"items": map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"id":      map[string]interface{}{"type": "STRING"},
			"title":   map[string]interface{}{"type": "STRING"},
			"type":    map[string]interface{}{"type": "STRING", "enum": []string{"scene", "decision", "ending"}},
			"content": map[string]interface{}{"type": "STRING"},
			"x":       map[string]interface{}{"type": "NUMBER"},
			"y":       map[string]interface{}{"type": "NUMBER"},
			"options": map[string]interface{}{
				"type": "ARRAY",
				"items": map[string]interface{}{
					"type": "OBJECT",
					"properties": map[string]interface{}{
						"id":       map[string]interface{}{"type": "STRING"},
						"label":    map[string]interface{}{"type": "STRING"},
						"targetId": map[string]interface{}{"type": "STRING"},
					},
				},
			},
		},
		"required": []string{"id", "title", "type", "content", "options"},
	},
}

func (p *Provider) GenerateStoryGraph(ctx context.Context, theme, style string, topology gen.Topology) (map[string]*models.StoryNode, error) {
	prompt := fmt.Sprintf(`Create an interactive story structure based on the Theme: "%s" and Style: "%s".

%s

IMPORTANT RULES:
1. Language: Simplified Chinese (简体中文).
2. Hierarchy: Organize nodes in layers (Top-Down).
   - Layer 1: Root 'start' node.
   - Layer 2: Max 4 sub-nodes connected to start.
   - Layer 3+: Continue flow.
3. Layout Coordinates (x, y):
   - 'start' node at x: 400, y: 100.
   - Increase 'y' by 250 for each subsequent layer.
   - Spread 'x' values in each layer so they don't overlap (e.g., 200, 400, 600, 800).
4. Max 4 options per node.

Return a JSON array of node objects.`, theme, style, topologyInstruction(topology))

	body := map[string]interface{}{
		"contents": userContents(prompt),
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema":   storyNodeSchema,
			"thinkingConfig":   map[string]interface{}{"thinkingBudget": 2048},
		},
	}

	resp, err := p.generateContent(ctx, p.textModel, body)
	if err != nil {
		return nil, err
	}

	var nodeList []*models.StoryNode
	if err := json.Unmarshal([]byte(resp.text()), &nodeList); err != nil {
		return nil, fmt.Errorf("parse generated story graph: %w", err)
	}

	nodeMap := make(map[string]*models.StoryNode, len(nodeList))
	for _, node := range nodeList {
		node.MediaType = models.MediaNone
		node.MediaSrc = ""
		node.AudioSrc = ""
		nodeMap[node.ID] = node
	}
	return nodeMap, nil
}

func (p *Provider) PolishText(ctx context.Context, text, style string) string {
	prompt := fmt.Sprintf(`Rewrite the following story segment to match the style "%s". Make it immersive and cinematic. Ensure the output is in Simplified Chinese (简体中文).

Original Text: "%s"`, style, text)

	resp, err := p.generateContent(ctx, p.textModel, map[string]interface{}{
		"contents": userContents(prompt),
	})
	if err != nil {
		return text
	}
	if polished := resp.text(); polished != "" {
		return polished
	}
	return text
}

func (p *Provider) GenerateBranchChoices(ctx context.Context, sceneText, style string) ([]gen.BranchChoice, error) {
	prompt := fmt.Sprintf(`Based on the current story scene: "%s"
Style: "%s"

Generate 2 to 3 logical and distinct plot branches (next steps) for the user to choose from.
For each branch, provide:
1. 'label': The short text on the choice button (Simplified Chinese).
2. 'content': A brief description of the next scene that follows this choice (Simplified Chinese).

Return JSON array.`, sceneText, style)

	body := map[string]interface{}{
		"contents": userContents(prompt),
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema": map[string]interface{}{
				"type": "ARRAY",
				"items": map[string]interface{}{
					"type": "OBJECT",
					"properties": map[string]interface{}{
						"label":   map[string]interface{}{"type": "STRING"},
						"content": map[string]interface{}{"type": "STRING"},
					},
					"required": []string{"label", "content"},
				},
			},
		},
	}

	resp, err := p.generateContent(ctx, p.textModel, body)
	if err != nil {
		return nil, err
	}
	var choices []gen.BranchChoice
	if err := json.Unmarshal([]byte(resp.text()), &choices); err != nil {
		return nil, fmt.Errorf("parse branch choices: %w", err)
	}
	return choices, nil
}

func (p *Provider) GenerateImage(ctx context.Context, sceneText, style string) (string, error) {
	prompt := fmt.Sprintf(`Generate a high-quality, cinematic image for a video game or movie scene. Style: %s.

The scene description is in Chinese: "%s".

Visualize this scene accurately based on the text.`, style, sceneText)
	return p.generateInlineAsset(ctx, prompt)
}

func (p *Provider) GenerateAvatar(ctx context.Context, name, description, style string) (string, error) {
	prompt := fmt.Sprintf(`Generate a character portrait. Close up or mid-shot. Style: %s. Character Name: %s. Character Description (Chinese): "%s". High quality, detailed character design.`, style, name, description)
	return p.generateInlineAsset(ctx, prompt)
}

// generateInlineAsset runs an image-model request and returns the inline
// binary result as a data URI. The image model rejects an explicit response
// mime type, so none is sent.
func (p *Provider) generateInlineAsset(ctx context.Context, prompt string) (string, error) {
	resp, err := p.generateContent(ctx, p.imageModel, map[string]interface{}{
		"contents": userContents(prompt),
	})
	if err != nil {
		return "", err
	}
	uri, ok := resp.inlineDataURI()
	if !ok {
		return "", errors.New("gemini returned no image data")
	}
	return uri, nil
}

func (p *Provider) GenerateAudio(ctx context.Context, sceneText string, kind gen.AudioKind) (string, error) {
	var prompt string
	if kind == gen.AudioSFX {
		prompt = fmt.Sprintf(`Generate a sound effect for: "%s"`, sceneText)
	} else {
		prompt = fmt.Sprintf(`Generate a short atmospheric background music loop for this scene (Chinese description): "%s"`, sceneText)
	}

	body := map[string]interface{}{
		"contents": userContents(prompt),
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]interface{}{
				"voiceConfig": map[string]interface{}{
					"prebuiltVoiceConfig": map[string]interface{}{"voiceName": "Kore"},
				},
			},
		},
	}

	resp, err := p.generateContent(ctx, p.audioModel, body)
	if err != nil {
		return "", err
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			return "data:audio/pcm;base64," + part.InlineData.Data, nil
		}
	}
	return "", errors.New("gemini returned no audio data")
}

// GenerateVideo starts a Veo long-running operation and polls it until the
// backend reports completion. The returned URI carries the API key so it is
// directly fetchable.
func (p *Provider) GenerateVideo(ctx context.Context, sceneText, style string) (string, error) {
	prompt := fmt.Sprintf(`Cinematic movie shot, %s. Context (Chinese): "%s".`, style, sceneText)

	body := map[string]interface{}{
		"instances": []map[string]interface{}{
			{"prompt": prompt},
		},
		"parameters": map[string]interface{}{
			"numberOfVideos": 1,
			"resolution":     "720p",
			"aspectRatio":    "16:9",
		},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	apiURL := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", p.baseURL, p.videoModel, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	var opStart struct {
		Name string `json:"name"`
	}
	startBody, _ := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("veo API error (%d): %s", httpResp.StatusCode, string(startBody))
	}
	if err := json.Unmarshal(startBody, &opStart); err != nil {
		return "", err
	}
	if opStart.Name == "" {
		return "", errors.New("veo returned no operation name")
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		uri, done, err := p.pollVideoOperation(ctx, opStart.Name)
		if err != nil {
			return "", err
		}
		if done {
			if uri == "" {
				return "", errors.New("veo operation finished without a video")
			}
			return fmt.Sprintf("%s&key=%s", uri, p.apiKey), nil
		}
	}
}

func (p *Provider) pollVideoOperation(ctx context.Context, name string) (uri string, done bool, err error) {
	pollURL := fmt.Sprintf("%s/%s?key=%s", p.baseURL, name, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", pollURL, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("veo poll error (%d): %s", resp.StatusCode, string(respBody))
	}

	var op struct {
		Done     bool `json:"done"`
		Response struct {
			GenerateVideoResponse struct {
				GeneratedSamples []struct {
					Video struct {
						URI string `json:"uri"`
					} `json:"video"`
				} `json:"generatedSamples"`
			} `json:"generateVideoResponse"`
		} `json:"response"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return "", false, err
	}
	if op.Error != nil {
		return "", false, fmt.Errorf("veo operation failed: %s", op.Error.Message)
	}
	if !op.Done {
		return "", false, nil
	}
	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 {
		return "", true, nil
	}
	return samples[0].Video.URI, true, nil
}
