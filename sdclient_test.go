package picker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	client, err := NewSDClient(SDConfig{
		BaseURL:      "http://localhost:7860",
		PromptPrefix: "a photo of",
		PromptSuffix: "highly detailed",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	texts := Texts{
		"CH0": {Title: "Subject", Values: []string{"a cat", "a dog"}},
		"CH1": {Title: "Style", Values: []string{"", "oil painting"}},
		"CH2": {Title: "Mood", Values: []string{"somber"}},
	}
	prompt := client.BuildPrompt(texts, map[int]int{0: 1, 1: 0, 2: 99})

	// CH1 selects an empty label and CH2's position is out of range; both
	// must be skipped without leaving stray separators.
	want := "a photo of, a dog, highly detailed"
	if prompt != want {
		t.Fatalf("prompt %q != %q", prompt, want)
	}
}

func TestTxt2ImgDecodesResponse(t *testing.T) {
	frame := grayFrame(16, 16, 128)
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var gotPath string
	var gotReq txt2imgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(txt2imgResponse{Images: []string{encoded}})
	}))
	defer srv.Close()

	client, err := NewSDClient(SDConfig{BaseURL: srv.URL, Steps: 9})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	img, err := client.Txt2Img(context.Background(), "a test prompt")
	if err != nil {
		t.Fatalf("txt2img: %v", err)
	}

	if gotPath != "/sdapi/v1/txt2img" {
		t.Fatalf("wrong endpoint %q", gotPath)
	}
	if gotReq.Prompt != "a test prompt" {
		t.Fatalf("wrong prompt %q", gotReq.Prompt)
	}
	if gotReq.Steps != 9 || gotReq.BatchSize != 1 || gotReq.NIter != 1 {
		t.Fatalf("unexpected generation params: %+v", gotReq)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Fatalf("decoded image has wrong geometry %v", img.Bounds())
	}
}

func TestTxt2ImgServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewSDClient(SDConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Txt2Img(context.Background(), "p"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestTxt2ImgEmptyImageList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(txt2imgResponse{})
	}))
	defer srv.Close()

	client, err := NewSDClient(SDConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Txt2Img(context.Background(), "p"); err == nil {
		t.Fatal("expected an error for an empty image list")
	}
}
