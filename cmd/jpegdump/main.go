package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deepimage/jpeg/jpeg"
)

type fileResult struct {
	path    string
	config  image.Config
	elapsed time.Duration
	err     error
}

type metaRecorder struct {
	horiz, vert uint16
	exifLen     int
}

func (m *metaRecorder) SetPixels(width, height int, pix []byte) {}

func (m *metaRecorder) SetResolution(horizontal, vertical uint16) {
	m.horiz, m.vert = horizontal, vertical
}

func (m *metaRecorder) SetExifProfile(profile []byte) {
	m.exifLen = len(profile)
}

func main() {
	writePNG := flag.Bool("png", false, "Write a .png next to each decoded input")
	metaOnly := flag.Bool("meta", false, "Stop after the frame header (no pixel decode)")
	workers := flag.Int("workers", 4, "Number of parallel workers")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: jpegdump [flags] file.jpg ...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	jobs := make(chan string, len(files))
	results := make(chan fileResult, len(files))
	var failed int64

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				r := dumpFile(path, *writePNG, *metaOnly, *verbose)
				if r.err != nil {
					atomic.AddInt64(&failed, 1)
				}
				results <- r
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.path, r.err)
			continue
		}
		fmt.Printf("%s: %dx%d %s (%v)\n",
			r.path, r.config.Width, r.config.Height, modelName(r.config), r.elapsed.Round(time.Microsecond))
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(files))
		os.Exit(1)
	}
}

func modelName(c image.Config) string {
	switch c.ColorModel {
	case color.GrayModel:
		return "gray"
	case color.YCbCrModel:
		return "ycbcr"
	case color.RGBAModel:
		return "rgb"
	case color.CMYKModel:
		return "cmyk"
	}
	return "unknown"
}

func dumpFile(path string, writePNG, metaOnly, verbose bool) fileResult {
	result := fileResult{path: path}

	f, err := os.Open(path)
	if err != nil {
		result.err = err
		return result
	}
	defer f.Close()

	result.config, result.err = jpeg.DecodeConfig(f)
	if result.err != nil {
		return result
	}
	if _, err := f.Seek(0, 0); err != nil {
		result.err = err
		return result
	}

	if metaOnly {
		var meta metaRecorder
		start := time.Now()
		if err := jpeg.DecodeInto(&meta, f, true); err != nil {
			result.err = err
			return result
		}
		result.elapsed = time.Since(start)
		if verbose && (meta.horiz != 0 || meta.vert != 0) {
			fmt.Printf("%s: density %dx%d\n", path, meta.horiz, meta.vert)
		}
		return result
	}

	start := time.Now()
	img, err := jpeg.Decode(f)
	result.elapsed = time.Since(start)
	if err != nil {
		result.err = err
		return result
	}

	if verbose {
		fmt.Printf("%s: decoded in %v\n", path, result.elapsed)
	}

	if writePNG {
		outPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
		out, err := os.Create(outPath)
		if err != nil {
			result.err = err
			return result
		}
		defer out.Close()
		if err := png.Encode(out, img); err != nil {
			result.err = err
			return result
		}
	}

	return result
}
