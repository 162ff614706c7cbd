// Package capture reads video frames from a camera device or network stream using GoCV.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings for local devices. Network streams keep their own.
const (
	DefaultSource = "http://localhost:8094/Default.m3u8"
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrNoFrame is returned when the source produced no frame. For streams
	// this is usually transient.
	ErrNoFrame = errors.New("no frame available")

	// ErrEndOfStream is returned by finite sources once every frame was read.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	Source() string
	IsOpen() bool
}

// cameraImpl manages video capture from a device index or stream URL.
type cameraImpl struct {
	source  string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for source. A source that parses as an integer
// is a local device index; anything else is passed to OpenCV as a URL or path.
func NewCamera(source string) Camera {
	if strings.TrimSpace(source) == "" {
		source = DefaultSource
	}
	return &cameraImpl{source: strings.TrimSpace(source)}
}

// DeviceIndex reports whether source names a local device and its index.
func DeviceIndex(source string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(source))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Open opens the source for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	id, isDevice := DeviceIndex(c.source)
	if isDevice {
		capture, err = gocv.OpenVideoCapture(id)
	} else {
		capture, err = gocv.OpenVideoCapture(c.source)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open %s: capture did not start", c.source)
	}

	if isDevice {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the source and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrame
	}

	return &mat, nil
}

// Source returns the device index or URL this camera reads from.
func (c *cameraImpl) Source() string {
	return c.source
}

// IsOpen returns true if the camera is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
