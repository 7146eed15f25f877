package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/raster"
)

func TestDefaultOptionsValid(t *testing.T) {
	opts := DefaultOptions()
	opts.Output = t.TempDir()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("DefaultOptions should validate: %v", err)
	}

	checks := []struct {
		name      string
		got, want int
	}{
		{"GroupWidth", opts.GroupWidth, 2},
		{"Width", opts.Width, 576},
		{"Height", opts.Height, 136},
		{"CropThreshold", opts.CropThreshold, 240},
		{"CropPadding", opts.CropPadding, 5},
		{"PageBreakMinBytes", opts.PageBreakMinBytes, 1024},
		{"Threshold", opts.Threshold, 127},
		{"ResizeThreshold", opts.ResizeThreshold, 5},
		{"Workers", opts.Workers, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if opts.HorizontalCrop {
		t.Error("HorizontalCrop should default to false")
	}
	if opts.Polarity != raster.PolarityLit {
		t.Errorf("Polarity = %q, want lit", opts.Polarity)
	}
}

func TestSetDefaults(t *testing.T) {
	opts := Options{Output: "out"}
	opts.SetDefaults()

	if opts.Polarity != raster.PolarityLit || opts.Cache != CacheFile || opts.Workers != DefaultWorkers {
		t.Errorf("SetDefaults left unset fields: %+v", opts)
	}
	// Geometry has no implicit default: an explicit zero must be rejected.
	if opts.GroupWidth != 0 || opts.Width != 0 || opts.Height != 0 || opts.CropThreshold != 0 {
		t.Errorf("SetDefaults filled geometry: %+v", opts)
	}
	if err := opts.Validate(); !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("Validate error = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestValidateAndSetDefaultsKeepsExplicitZero(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"zero group width", func(o *Options) { o.GroupWidth = 0 }, true},
		{"zero width", func(o *Options) { o.Width = 0 }, true},
		{"zero height", func(o *Options) { o.Height = 0 }, true},
		{"zero stem kernel", func(o *Options) { o.StemKernel = raster.Kernel{} }, true},
		{"zero staff kernel", func(o *Options) { o.StaffKernel = raster.Kernel{} }, true},
		{"zero crop threshold", func(o *Options) { o.CropThreshold = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Output = "out"
			tt.mutate(&opts)
			err := opts.ValidateAndSetDefaults()
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
					t.Errorf("error = %v, want INVALID_CONFIGURATION", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAndSetDefaults error: %v", err)
			}
			if opts.CropThreshold != 0 {
				t.Errorf("CropThreshold = %d, want 0", opts.CropThreshold)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"no output", func(o *Options) { o.Output = "" }},
		{"negative group width", func(o *Options) { o.GroupWidth = -1 }},
		{"too wide", func(o *Options) { o.Width = 577 }},
		{"too tall", func(o *Options) { o.Height = 200 }},
		{"crop threshold", func(o *Options) { o.CropThreshold = 300 }},
		{"negative padding", func(o *Options) { o.CropPadding = -1 }},
		{"tall stem kernel", func(o *Options) { o.StemKernel = raster.Kernel{Width: 1, Height: 3} }},
		{"wide staff kernel", func(o *Options) { o.StaffKernel = raster.Kernel{Width: 4, Height: 1} }},
		{"negative iterations", func(o *Options) { o.StaffIterations = -1 }},
		{"bad label format", func(o *Options) { o.LabelFormat = "Meas. %s" }},
		{"two verbs", func(o *Options) { o.LabelFormat = "%d of %d" }},
		{"threshold", func(o *Options) { o.Threshold = 256 }},
		{"resize threshold", func(o *Options) { o.ResizeThreshold = -5 }},
		{"polarity", func(o *Options) { o.Polarity = "sepia" }},
		{"negative workers", func(o *Options) { o.Workers = -2 }},
		{"negative timeout", func(o *Options) { o.RenderTimeout = -time.Second }},
		{"label size", func(o *Options) { o.LabelSize = -1 }},
		{"cache", func(o *Options) { o.Cache = "memcached" }},
		{"redis without url", func(o *Options) { o.Cache = CacheRedis }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Output = "out"
			tt.mutate(&opts)
			err := opts.Validate()
			if !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
				t.Errorf("Validate error = %v, want INVALID_CONFIGURATION", err)
			}
		})
	}
}

func TestOptionsEmptyLabelAllowed(t *testing.T) {
	opts := DefaultOptions()
	opts.Output = "out"
	opts.LabelFormat = ""
	if err := opts.Validate(); err != nil {
		t.Errorf("empty label format should disable labels, got %v", err)
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoreframes.toml")
	config := `
group_width = 4
horizontal_crop = true
stem_kernel = { width = 5, height = 1 }
render_timeout = "90s"
polarity = "paper"
`
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadOptions error: %v", err)
	}
	if opts.GroupWidth != 4 || !opts.HorizontalCrop {
		t.Errorf("scalar keys not applied: %+v", opts)
	}
	if opts.StemKernel != (raster.Kernel{Width: 5, Height: 1}) {
		t.Errorf("StemKernel = %v", opts.StemKernel)
	}
	if opts.RenderTimeout != 90*time.Second {
		t.Errorf("RenderTimeout = %v", opts.RenderTimeout)
	}
	if opts.Polarity != raster.PolarityPaper {
		t.Errorf("Polarity = %q", opts.Polarity)
	}
	if opts.CropPadding != DefaultCropPadding {
		t.Errorf("unset key lost its base value: CropPadding = %d", opts.CropPadding)
	}
}

func TestLoadOptionsRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("group_widht = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadOptions(path, DefaultOptions())
	if !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("LoadOptions error = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestLoadOptionsMissingFile(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "nope.toml"), DefaultOptions()); err == nil {
		t.Error("LoadOptions should fail for a missing file")
	}
}

func TestStageString(t *testing.T) {
	if StageRendering.String() != "Rendering" || StageDone.String() != "Done" {
		t.Errorf("stage names: %s, %s", StageRendering, StageDone)
	}
	if Stage(42).String() != "Stage(42)" {
		t.Errorf("unknown stage = %s", Stage(42))
	}
}

func TestWorkspacePrepare(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(keep, []byte("mine"), 0644); err != nil {
		t.Fatal(err)
	}

	ws := NewWorkspace(root)
	if err := ws.Prepare(true); err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	stale := ws.FramePath(7)
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ws.Prepare(false); err != nil {
		t.Fatalf("second Prepare error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale frame survived Prepare")
	}
	if _, err := os.Stat(ws.Debug); !os.IsNotExist(err) {
		t.Error("debug directory created without debug")
	}
	for _, d := range []string{ws.Frames, ws.Raw, ws.Bitmap} {
		if st, err := os.Stat(d); err != nil || !st.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("Prepare removed a file outside the workspace areas")
	}
}

func TestWorkspacePrepareFailure(t *testing.T) {
	root := t.TempDir()
	// A file where the frames directory should go.
	blocker := filepath.Join(root, "temp")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(root, 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(root, 0755)
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	err := NewWorkspace(root).Prepare(false)
	if !errors.Is(err, errors.ErrCodeWorkspace) {
		t.Errorf("Prepare error = %v, want WORKSPACE_PREPARATION_FAILED", err)
	}
}

func TestWorkspacePaths(t *testing.T) {
	ws := NewWorkspace("out")
	tests := []struct{ got, want string }{
		{ws.RawPath(9), filepath.Join("out", "temp", "raw", "9.png")},
		{ws.BitmapPath(3), filepath.Join("out", "temp", "bitmap", "3.bmp")},
		{ws.FramePath(0), filepath.Join("out", "frames", "0.bmp")},
		{ws.DebugPath(2, 4, "dilated"), filepath.Join("out", "debug", "2_4_dilated.png")},
		{ws.ManifestPath(), filepath.Join("out", "manifest.json")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}
