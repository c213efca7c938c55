// Package thumbnail resizes record images to a bounded dimension using
// ImageMagick, for applications that want a quick preview instead of the
// full embedded asset.
package thumbnail

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/gographics/imagick.v3/imagick"
)

// Format names a supported thumbnail output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWBMP Format = "wbmp"
	FormatPNG  Format = "png"
)

// Generate resizes input (an encoded image, of any format ImageMagick can
// read) so that its longest side is at most maxDimension, and re-encodes it
// as format. It shells out to the imagick command pipeline the same way the
// reference image conversion does, since imagick's native MagickWand API
// does not expose FloydSteinberg dithering with a 1-bit colormap remap in a
// way that is simpler than driving the CLI tool directly.
func Generate(input []byte, maxDimension int64, format Format) ([]byte, error) {
	imagick.Initialize()
	defer imagick.Terminate()

	tmpdir, err := os.MkdirTemp("", "zimscan-thumbnail")
	if err != nil {
		return nil, fmt.Errorf("thumbnail: creating scratch directory: %w", err)
	}
	defer os.RemoveAll(tmpdir)

	srcPath := filepath.Join(tmpdir, "input.img")
	if err := os.WriteFile(srcPath, input, 0o644); err != nil {
		return nil, fmt.Errorf("thumbnail: writing source image: %w", err)
	}

	dstPath := filepath.Join(tmpdir, "output."+string(format))
	args := []string{"convert", srcPath, "-resize", fmt.Sprintf("%dx%d>", maxDimension, maxDimension)}
	if format == FormatWBMP {
		args = append(args, "-dither", "FloydSteinberg", "-remap", "pattern:gray50")
	} else if format == FormatJPEG {
		args = append(args, "-quality", "70%")
	}
	args = append(args, dstPath)

	if _, err := imagick.ConvertImageCommand(args); err != nil {
		return nil, fmt.Errorf("thumbnail: converting to %s: %w", format, err)
	}

	output, err := os.ReadFile(dstPath)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: reading converted image: %w", err)
	}
	return output, nil
}
