package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/domain/queue"
	"fal-mcp-server/internal/domain/registry"
	"fal-mcp-server/internal/infrastructure/metrics"
)

// Per-tool wait limits for queued generations.
const (
	editImageTimeout        = 90 * time.Second
	removeBackgroundTimeout = 60 * time.Second
	upscaleTimeout          = 120 * time.Second
	inpaintTimeout          = 90 * time.Second
	videoTimeout            = 180 * time.Second
	musicTimeout            = 120 * time.Second
	speechTimeout           = 60 * time.Second
	transcribeTimeout       = 120 * time.Second
)

// GenerationMCP registers the generative tools. Every handler resolves the
// caller's model input through the registry and executes through the
// configured queue strategy.
type GenerationMCP struct {
	registry *registry.Registry
	strategy queue.Strategy
}

// NewGenerationMCP creates a generation MCP handler.
func NewGenerationMCP(reg *registry.Registry, strategy queue.Strategy) *GenerationMCP {
	return &GenerationMCP{registry: reg, strategy: strategy}
}

// RegisterTools registers all generation tools with the MCP server.
func (g *GenerationMCP) RegisterTools(server *mcp.Server) {
	g.registerGenerateImage(server)
	g.registerEditImage(server)
	g.registerRemoveBackground(server)
	g.registerUpscaleImage(server)
	g.registerInpaintImage(server)
	g.registerGenerateVideo(server)
	g.registerImageToVideo(server)
	g.registerGenerateMusic(server)
	g.registerTextToSpeech(server)
	g.registerTranscribeAudio(server)

	log.Info().Str("strategy", g.strategy.Name()).Msg("Generation MCP tools registered")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// resolveModel turns caller input into a canonical model id. Unknown
// aliases come back to the caller as guidance, not a protocol error.
func (g *GenerationMCP) resolveModel(ctx context.Context, tool, input string) (string, *mcp.CallToolResult) {
	modelID, err := g.registry.Resolve(ctx, input)
	if err != nil {
		log.Warn().Str("tool", tool).Str("model", input).Err(err).Msg("Model resolution failed")
		metrics.RecordToolCall(tool, "unknown_model")
		return "", textResult(fmt.Sprintf("❌ Unknown model %q. Use list_models to see available options.", input))
	}
	return modelID, nil
}

// executeQueued runs one queued generation and maps its outcome. Timeouts
// and remote failures come back as text results so agent callers can read
// them; transport errors propagate.
func (g *GenerationMCP) executeQueued(ctx context.Context, tool, verb, modelID string, args map[string]any, timeout time.Duration) (map[string]any, *mcp.CallToolResult, error) {
	outcome, err := g.strategy.Execute(ctx, modelID, args, timeout)
	if err != nil {
		if errors.Is(err, queue.ErrJobTimeout) {
			metrics.RecordToolCall(tool, "timed_out")
			return nil, textResult(fmt.Sprintf("❌ %s timed out after %d seconds with %s", verb, int(timeout.Seconds()), modelID)), nil
		}
		metrics.RecordToolCall(tool, "error")
		return nil, nil, err
	}

	switch outcome.State {
	case queue.OutcomeTimedOut:
		metrics.RecordToolCall(tool, "timed_out")
		return nil, textResult(fmt.Sprintf("❌ %s timed out after %d seconds with %s", verb, int(timeout.Seconds()), modelID)), nil
	case queue.OutcomeFailed:
		metrics.RecordToolCall(tool, "failed")
		return nil, textResult(fmt.Sprintf("❌ %s failed: %s", verb, outcome.ErrorMessage)), nil
	default:
		metrics.RecordToolCall(tool, "success")
		return outcome.Payload, nil, nil
	}
}

// nestedURL digs payload[key].url out of a result payload, falling back to
// the flat payload[key+"_url"] spelling some models use.
func nestedURL(payload map[string]any, key string) string {
	if inner, ok := payload[key].(map[string]any); ok {
		if url, ok := inner["url"].(string); ok {
			return url
		}
	}
	if url, ok := payload[key+"_url"].(string); ok {
		return url
	}
	return ""
}

// imageURLs collects every image URL from a generation payload.
func imageURLs(payload map[string]any) []string {
	var urls []string
	if raw, ok := payload["images"].([]any); ok {
		for _, item := range raw {
			switch v := item.(type) {
			case map[string]any:
				if url, ok := v["url"].(string); ok && url != "" {
					urls = append(urls, url)
				}
			case string:
				if v != "" {
					urls = append(urls, v)
				}
			}
		}
	}
	if len(urls) == 0 {
		if url := nestedURL(payload, "image"); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

// --- generate_image ---

type GenerateImageArgs struct {
	Prompt              string   `json:"prompt"`
	Model               string   `json:"model,omitempty"`
	NegativePrompt      string   `json:"negative_prompt,omitempty"`
	ImageSize           string   `json:"image_size,omitempty"`
	NumImages           *int     `json:"num_images,omitempty"`
	Seed                *int     `json:"seed,omitempty"`
	EnableSafetyChecker *bool    `json:"enable_safety_checker,omitempty"`
	GuidanceScale       *float64 `json:"guidance_scale,omitempty"`
	OutputFormat        string   `json:"output_format,omitempty"`
}

func (g *GenerationMCP) registerGenerateImage(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_image",
		Description: "Generate images from text prompts. Accepts a model ID (e.g., 'fal-ai/flux-pro') or alias (e.g., 'flux_schnell'). Use list_models with category='image' to discover available models.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GenerateImageArgs) (*mcp.CallToolResult, map[string]any, error) {
		callCtx := extractCallContext(req)
		log.Info().
			Str("tool", "generate_image").
			Str("tool_call_id", callCtx["tool_call_id"]).
			Str("request_id", callCtx["request_id"]).
			Msg("MCP tool call received")

		if strings.TrimSpace(input.Prompt) == "" {
			return nil, nil, fmt.Errorf("prompt is required")
		}

		model := input.Model
		if model == "" {
			model = "flux_schnell"
		}
		modelID, failure := g.resolveModel(ctx, "generate_image", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{"prompt": input.Prompt}
		if input.NegativePrompt != "" {
			args["negative_prompt"] = input.NegativePrompt
		}
		if input.ImageSize != "" {
			args["image_size"] = input.ImageSize
		}
		if input.NumImages != nil {
			args["num_images"] = *input.NumImages
		}
		if input.Seed != nil {
			args["seed"] = *input.Seed
		}
		if input.EnableSafetyChecker != nil {
			args["enable_safety_checker"] = *input.EnableSafetyChecker
		}
		if input.GuidanceScale != nil {
			args["guidance_scale"] = *input.GuidanceScale
		}
		if input.OutputFormat != "" {
			args["output_format"] = input.OutputFormat
		}

		payload, err := g.strategy.ExecuteFast(ctx, modelID, args)
		if err != nil {
			metrics.RecordToolCall("generate_image", "error")
			return nil, nil, fmt.Errorf("image generation failed with %s: %w", modelID, err)
		}
		metrics.RecordToolCall("generate_image", "success")

		urls := imageURLs(payload)
		if len(urls) == 0 {
			return textResult("❌ Image generation completed but no image URL was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("🖼️ Image generated with %s:\n%s", modelID, strings.Join(urls, "\n"))), payload, nil
	})
}

// --- edit_image ---

type EditImageArgs struct {
	Prompt   string   `json:"prompt"`
	ImageURL string   `json:"image_url"`
	Model    string   `json:"model,omitempty"`
	Strength *float64 `json:"strength,omitempty"`
	Seed     *int     `json:"seed,omitempty"`
}

func (g *GenerationMCP) registerEditImage(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "edit_image",
		Description: "Edit an existing image with a text prompt. Use upload_file first if you have a local image.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input EditImageArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, nil, fmt.Errorf("prompt is required")
		}
		if strings.TrimSpace(input.ImageURL) == "" {
			return nil, nil, fmt.Errorf("image_url is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/flux-2/edit"
		}
		modelID, failure := g.resolveModel(ctx, "edit_image", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{
			"prompt":    input.Prompt,
			"image_url": input.ImageURL,
		}
		if input.Strength != nil {
			args["strength"] = *input.Strength
		}
		if input.Seed != nil {
			args["seed"] = *input.Seed
		}

		payload, result, err := g.executeQueued(ctx, "edit_image", "Image editing", modelID, args, editImageTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		urls := imageURLs(payload)
		if len(urls) == 0 {
			return textResult("❌ Image editing completed but no image URL was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("🖼️ Image edited with %s: %s", modelID, urls[0])), payload, nil
	})
}

// --- remove_background ---

type RemoveBackgroundArgs struct {
	ImageURL     string `json:"image_url"`
	Model        string `json:"model,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

func (g *GenerationMCP) registerRemoveBackground(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_background",
		Description: "Remove the background from an image, producing a transparent PNG. Use upload_file first if you have a local image.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input RemoveBackgroundArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.ImageURL) == "" {
			return nil, nil, fmt.Errorf("image_url is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/birefnet/v2"
		}
		modelID, failure := g.resolveModel(ctx, "remove_background", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{"image_url": input.ImageURL}
		if input.OutputFormat != "" {
			args["output_format"] = input.OutputFormat
		}

		payload, result, err := g.executeQueued(ctx, "remove_background", "Background removal", modelID, args, removeBackgroundTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		url := nestedURL(payload, "image")
		if url == "" {
			return textResult("❌ Background removal completed but no image was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("✂️ Background removed successfully!\n\n**Result**: %s\n\nThe image now has a transparent background (PNG format).", url)), payload, nil
	})
}

// --- upscale_image ---

type UpscaleImageArgs struct {
	ImageURL string `json:"image_url"`
	Model    string `json:"model,omitempty"`
	Scale    *int   `json:"scale,omitempty"`
}

func (g *GenerationMCP) registerUpscaleImage(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "upscale_image",
		Description: "Increase the resolution of an image. Scale defaults to 2x. Use upload_file first if you have a local image.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input UpscaleImageArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.ImageURL) == "" {
			return nil, nil, fmt.Errorf("image_url is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/clarity-upscaler"
		}
		modelID, failure := g.resolveModel(ctx, "upscale_image", model)
		if failure != nil {
			return failure, nil, nil
		}

		scale := 2
		if input.Scale != nil && *input.Scale > 0 {
			scale = *input.Scale
		}
		args := map[string]any{
			"image_url": input.ImageURL,
			"scale":     scale,
		}

		payload, result, err := g.executeQueued(ctx, "upscale_image", "Upscaling", modelID, args, upscaleTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		url := nestedURL(payload, "image")
		if url == "" {
			return textResult("❌ Upscaling completed but no image was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("🔍 Image upscaled %dx successfully!\n\n**Result**: %s\n\nThe image resolution has been increased by %dx.", scale, url, scale)), payload, nil
	})
}

// --- inpaint_image ---

type InpaintImageArgs struct {
	ImageURL       string `json:"image_url"`
	MaskURL        string `json:"mask_url"`
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

func (g *GenerationMCP) registerInpaintImage(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "inpaint_image",
		Description: "Regenerate the masked region of an image from a text prompt. The mask is a black-and-white image where white marks the area to replace.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input InpaintImageArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.ImageURL) == "" {
			return nil, nil, fmt.Errorf("image_url is required")
		}
		if strings.TrimSpace(input.MaskURL) == "" {
			return nil, nil, fmt.Errorf("mask_url is required")
		}
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, nil, fmt.Errorf("prompt is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/flux-kontext-lora/inpaint"
		}
		modelID, failure := g.resolveModel(ctx, "inpaint_image", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{
			"image_url": input.ImageURL,
			"mask_url":  input.MaskURL,
			"prompt":    input.Prompt,
		}
		if input.NegativePrompt != "" {
			args["negative_prompt"] = input.NegativePrompt
		}
		if input.Seed != nil {
			args["seed"] = *input.Seed
		}

		payload, result, err := g.executeQueued(ctx, "inpaint_image", "Inpainting", modelID, args, inpaintTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		urls := imageURLs(payload)
		if len(urls) == 0 {
			return textResult("❌ Inpainting completed but no image was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("🖌️ Inpainting completed!\n\n**Prompt**: %s\n\n**Result**: %s", input.Prompt, urls[0])), payload, nil
	})
}

// --- generate_video / image_to_video ---

type GenerateVideoArgs struct {
	Prompt         string   `json:"prompt"`
	ImageURL       string   `json:"image_url,omitempty"`
	Model          string   `json:"model,omitempty"`
	Duration       *int     `json:"duration,omitempty"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	CfgScale       *float64 `json:"cfg_scale,omitempty"`
}

func videoArgs(input GenerateVideoArgs) map[string]any {
	args := map[string]any{"prompt": input.Prompt}
	if input.ImageURL != "" {
		args["image_url"] = input.ImageURL
	}
	if input.Duration != nil {
		args["duration"] = *input.Duration
	}
	if input.AspectRatio != "" {
		args["aspect_ratio"] = input.AspectRatio
	}
	if input.NegativePrompt != "" {
		args["negative_prompt"] = input.NegativePrompt
	}
	if input.CfgScale != nil {
		args["cfg_scale"] = *input.CfgScale
	}
	return args
}

func (g *GenerationMCP) finishVideo(modelID string, payload map[string]any) *mcp.CallToolResult {
	url := nestedURL(payload, "video")
	if url == "" {
		if flat, ok := payload["url"].(string); ok {
			url = flat
		}
	}
	if url == "" {
		return textResult("❌ Video generation completed but no video URL was returned. Please try again.")
	}
	return textResult(fmt.Sprintf("🎬 Video generated with %s: %s", modelID, url))
}

func (g *GenerationMCP) registerGenerateVideo(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_video",
		Description: "Generate videos from text prompts (text-to-video) or from images (image-to-video). Use list_models with category='video' to discover available models.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GenerateVideoArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, nil, fmt.Errorf("prompt is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/wan-i2v"
		}
		modelID, failure := g.resolveModel(ctx, "generate_video", model)
		if failure != nil {
			return failure, nil, nil
		}

		payload, result, err := g.executeQueued(ctx, "generate_video", "Video generation", modelID, videoArgs(input), videoTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}
		return g.finishVideo(modelID, payload), payload, nil
	})
}

func (g *GenerationMCP) registerImageToVideo(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "image_to_video",
		Description: "Animate an image into a video. The image serves as the starting frame and the prompt guides the animation. Use upload_file first if you have a local image.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GenerateVideoArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.ImageURL) == "" {
			return nil, nil, fmt.Errorf("image_url is required")
		}
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, nil, fmt.Errorf("prompt is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/wan-i2v"
		}
		modelID, failure := g.resolveModel(ctx, "image_to_video", model)
		if failure != nil {
			return failure, nil, nil
		}

		payload, result, err := g.executeQueued(ctx, "image_to_video", "Video generation", modelID, videoArgs(input), videoTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}
		return g.finishVideo(modelID, payload), payload, nil
	})
}

// --- generate_music ---

type GenerateMusicArgs struct {
	Prompt          string `json:"prompt"`
	Model           string `json:"model,omitempty"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
	LyricsPrompt    string `json:"lyrics_prompt,omitempty"`
}

func (g *GenerationMCP) registerGenerateMusic(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_music",
		Description: "Generate music from text prompts. Describe genre, mood, instruments, and tempo for best results.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GenerateMusicArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, nil, fmt.Errorf("prompt is required")
		}

		model := input.Model
		if model == "" {
			model = "fal-ai/lyria2"
		}
		modelID, failure := g.resolveModel(ctx, "generate_music", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{"prompt": input.Prompt}
		if input.DurationSeconds != nil {
			args["duration_seconds"] = *input.DurationSeconds
		}
		if input.NegativePrompt != "" {
			args["negative_prompt"] = input.NegativePrompt
		}
		if input.LyricsPrompt != "" {
			args["lyrics_prompt"] = input.LyricsPrompt
		}

		payload, result, err := g.executeQueued(ctx, "generate_music", "Music generation", modelID, args, musicTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		url := nestedURL(payload, "audio")
		if url == "" {
			return textResult("❌ Music generation completed but no audio URL was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("🎵 Music generated with %s: %s", modelID, url)), payload, nil
	})
}

// --- text_to_speech ---

type TextToSpeechArgs struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`
}

func (g *GenerationMCP) registerTextToSpeech(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "text_to_speech",
		Description: "Convert text to spoken audio. Accepts a model ID or alias (default 'bark').",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input TextToSpeechArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.Text) == "" {
			return nil, nil, fmt.Errorf("text is required")
		}

		model := input.Model
		if model == "" {
			model = "bark"
		}
		modelID, failure := g.resolveModel(ctx, "text_to_speech", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{"text": input.Text}
		if input.Voice != "" {
			args["voice"] = input.Voice
		}

		payload, result, err := g.executeQueued(ctx, "text_to_speech", "Speech generation", modelID, args, speechTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		url := nestedURL(payload, "audio")
		if url == "" {
			return textResult("❌ Speech generation completed but no audio URL was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("🔊 Speech generated with %s: %s", modelID, url)), payload, nil
	})
}

// --- transcribe_audio ---

type TranscribeAudioArgs struct {
	AudioURL string `json:"audio_url"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

func (g *GenerationMCP) registerTranscribeAudio(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcribe_audio",
		Description: "Transcribe speech from an audio file URL to text. Use upload_file first for local audio files.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input TranscribeAudioArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.AudioURL) == "" {
			return nil, nil, fmt.Errorf("audio_url is required")
		}

		model := input.Model
		if model == "" {
			model = "whisper"
		}
		modelID, failure := g.resolveModel(ctx, "transcribe_audio", model)
		if failure != nil {
			return failure, nil, nil
		}

		args := map[string]any{"audio_url": input.AudioURL}
		if input.Language != "" {
			args["language"] = input.Language
		}

		payload, result, err := g.executeQueued(ctx, "transcribe_audio", "Transcription", modelID, args, transcribeTimeout)
		if err != nil || result != nil {
			return result, nil, err
		}

		text, _ := payload["text"].(string)
		if strings.TrimSpace(text) == "" {
			return textResult("❌ Transcription completed but no text was returned. Please try again."), payload, nil
		}
		return textResult(fmt.Sprintf("📝 Transcription (%s):\n\n%s", modelID, text)), payload, nil
	})
}
