package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/story"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.White)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testAssets(t *testing.T) *story.GeneratedAssets {
	img := story.ImageDataURL("image/jpeg", testJPEG(t, 960, 540))
	return &story.GeneratedAssets{
		Script: []story.Scene{
			{Number: 1, VisualDescription: "dawn", Narration: "It began at dawn.", ImageURL: img},
			{Number: 2, VisualDescription: "noon", Narration: "By noon it was over.", ImageURL: img},
		},
		AudioData: playback.EncodePCM16([]float32{0, 0.25, -0.25}),
	}
}

func fileNames(pkg *Package) []string {
	var names []string
	for _, f := range pkg.Files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func findFile(t *testing.T, pkg *Package, name string) File {
	t.Helper()
	for _, f := range pkg.Files {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("File %s not in package", name)
	return File{}
}

func TestBuildLayout(t *testing.T) {
	assets := testAssets(t)
	req := story.DefaultRequest()

	pkg, err := Build("demo", req, assets, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"cover.jpg", "images/scene_1.jpg", "images/scene_2.jpg", "request.yaml",
		"script.json", "share.png", "subtitles.srt", "thumbnail.jpg", "voiceover.pcm",
	}
	if got := fileNames(pkg); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected files %v, got %v", want, got)
	}

	var script []story.Scene
	if err := json.Unmarshal(findFile(t, pkg, "script.json").Data, &script); err != nil {
		t.Fatal(err)
	}
	if len(script) != 2 || script[1].Narration != "By noon it was over." {
		t.Errorf("Unexpected script %+v", script)
	}

	if pcm := findFile(t, pkg, "voiceover.pcm").Data; len(pcm) != 6 {
		t.Errorf("Expected 6 raw audio bytes, got %d", len(pcm))
	}

	thumb, _, err := image.Decode(bytes.NewReader(findFile(t, pkg, "thumbnail.jpg").Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := thumb.Bounds(); b.Dx() != 480 || b.Dy() != 270 {
		t.Errorf("Expected 480x270 thumbnail, got %v", b)
	}

	cover, _, err := image.Decode(bytes.NewReader(findFile(t, pkg, "cover.jpg").Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := cover.Bounds(); b.Dx() != 512 || b.Dy() != 512 {
		t.Errorf("Expected 512x512 cover, got %v", b)
	}

	if png := findFile(t, pkg, "share.png").Data; !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("Share card is not a PNG")
	}

	srt := string(findFile(t, pkg, "subtitles.srt").Data)
	if !strings.Contains(srt, "2\n00:00:15,000 --> 00:00:30,000\nBy noon it was over.") {
		t.Errorf("Unexpected subtitles:\n%s", srt)
	}
}

func TestBuildWithoutSubtitles(t *testing.T) {
	req := story.DefaultRequest()
	req.Subtitles = false
	pkg, err := Build("demo", req, testAssets(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range fileNames(pkg) {
		if name == "subtitles.srt" {
			t.Error("Subtitles exported although disabled")
		}
	}

	bare, err := Build("demo", req, testAssets(t), Options{SkipExtras: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(bare.Files) != 5 {
		t.Errorf("Expected 5 files without extras, got %v", fileNames(bare))
	}
}

func TestBuildTranscodesNonJPEGImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	assets := testAssets(t)
	assets.Script[0].ImageURL = story.ImageDataURL("image/png", buf.Bytes())

	pkg, err := Build("demo", story.DefaultRequest(), assets, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"images/scene_1.jpg", "images/scene_2.jpg"} {
		f := findFile(t, pkg, name)
		if f.ContentType != "image/jpeg" {
			t.Errorf("%s: expected image/jpeg, got %s", name, f.ContentType)
		}
		if !bytes.HasPrefix(f.Data, []byte{0xFF, 0xD8}) {
			t.Errorf("%s is not JPEG data", name)
		}
		if _, format, err := image.Decode(bytes.NewReader(f.Data)); err != nil || format != "jpeg" {
			t.Errorf("%s decoded as %q: %v", name, format, err)
		}
	}
}

func TestBuildRejectsIncompleteScript(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *story.GeneratedAssets)
	}{
		{"missing image", func(a *story.GeneratedAssets) { a.Script[1].ImageURL = "" }},
		{"gap", func(a *story.GeneratedAssets) { a.Script[1].Number = 3 }},
		{"no scenes", func(a *story.GeneratedAssets) { a.Script = nil }},
		{"bad image", func(a *story.GeneratedAssets) { a.Script[0].ImageURL = "https://example.com/a.jpg" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := testAssets(t)
			tt.mutate(assets)
			if _, err := Build("demo", story.DefaultRequest(), assets, Options{}); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestSRTTime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00,000"},
		{1500 * time.Millisecond, "00:00:01,500"},
		{time.Hour + 2*time.Minute + 5*time.Second + 7*time.Millisecond, "01:02:05,007"},
	}
	for _, tt := range tests {
		if got := srtTime(tt.d); got != tt.want {
			t.Errorf("srtTime(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestShareCardLongText(t *testing.T) {
	card, err := ShareCard(strings.Repeat("привет ", 400), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if len(card) == 0 {
		t.Error("Empty share card")
	}
}

func TestZipSink(t *testing.T) {
	pkg, err := Build("demo", story.DefaultRequest(), testAssets(t), Options{SkipExtras: true})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path, err := ZipSink{Dir: dir}.Write(context.Background(), pkg)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "demo.zip") {
		t.Errorf("Unexpected path %s", path)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != strings.Join(fileNames(pkg), ",") {
		t.Errorf("Zip entries %v differ from package %v", names, fileNames(pkg))
	}
}

func TestDirSink(t *testing.T) {
	pkg, err := Build("demo", story.DefaultRequest(), testAssets(t), Options{SkipExtras: true})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	root, err := DirSink{Dir: dir}.Write(context.Background(), pkg)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range fileNames(pkg) {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(name))); err != nil {
			t.Errorf("Missing %s: %v", name, err)
		}
	}
}

// Runs against a real MinIO only when MINIO_TEST_ENDPOINT is set.
func TestMinioSink(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}
	cfg := &config.Config{
		MinioEndpoint:  endpoint,
		MinioAccessKey: os.Getenv("MINIO_TEST_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_TEST_SECRET_KEY"),
		MinioBucket:    "story2video-test",
	}
	ctx := context.Background()
	sink, err := NewMinioSink(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := Build("", story.DefaultRequest(), testAssets(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	location, err := sink.Write(ctx, pkg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(location, "s3://story2video-test/story_") {
		t.Errorf("Unexpected location %s", location)
	}
}
