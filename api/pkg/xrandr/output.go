// Package xrandr reads the framebuffer id the compositor publishes on its
// virtual XR output.
package xrandr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultOutput is the virtual output the compositor renders the XR
	// desktop into.
	DefaultOutput = "XR-0"

	// FramebufferProperty holds the DRM framebuffer id backing an output.
	FramebufferProperty = "FRAMEBUFFER_ID"
)

var (
	ErrOutputNotFound  = errors.New("output not found")
	ErrPropertyMissing = errors.New("output property missing")
)

// Client queries RandR output properties over one X connection.
type Client struct {
	display string

	mu      sync.Mutex
	conn    *xgb.Conn
	root    xproto.Window
	atom    xproto.Atom
	outputs map[string]randr.Output
}

// Connect opens an X connection to display ("" means $DISPLAY) and checks
// that the RandR extension is present.
func Connect(display string) (*Client, error) {
	c := &Client{display: display}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := xgb.NewConnDisplay(c.display)
	if err != nil {
		return fmt.Errorf("failed to connect to X display %q: %w", c.display, err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return fmt.Errorf("RandR extension unavailable: %w", err)
	}

	atomReply, err := xproto.InternAtom(conn, true, uint16(len(FramebufferProperty)), FramebufferProperty).Reply()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to intern %s: %w", FramebufferProperty, err)
	}
	if atomReply.Atom == xproto.AtomNone {
		conn.Close()
		return fmt.Errorf("%s atom does not exist: %w", FramebufferProperty, ErrPropertyMissing)
	}

	c.conn = conn
	c.root = xproto.Setup(conn).DefaultScreen(conn).Root
	c.atom = atomReply.Atom
	c.outputs = make(map[string]randr.Output)
	return nil
}

func (c *Client) findOutput(name string) (randr.Output, error) {
	if id, ok := c.outputs[name]; ok {
		return id, nil
	}

	resources, err := randr.GetScreenResourcesCurrent(c.conn, c.root).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get screen resources: %w", err)
	}
	for _, output := range resources.Outputs {
		info, err := randr.GetOutputInfo(c.conn, output, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if string(info.Name) == name {
			c.outputs[name] = output
			return output, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, ErrOutputNotFound)
}

// FramebufferID returns the DRM framebuffer id currently backing output.
func (c *Client) FramebufferID(output string) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(); err != nil {
			return 0, err
		}
	}

	id, err := c.findOutput(output)
	if err != nil {
		return 0, err
	}

	reply, err := randr.GetOutputProperty(c.conn, id, c.atom, xproto.GetPropertyTypeAny, 0, 1, false, false).Reply()
	if err != nil {
		// the output may have been removed and re-added, or the connection
		// broke; start over on the next query
		c.conn.Close()
		c.conn = nil
		return 0, fmt.Errorf("GetOutputProperty(%s, %s): %w", output, FramebufferProperty, err)
	}
	return decodeFramebufferID(reply.Format, reply.NumItems, reply.Data)
}

func decodeFramebufferID(format byte, numItems uint32, data []byte) (uint32, error) {
	if format != 32 || numItems != 1 || len(data) < 4 {
		return 0, fmt.Errorf("%s has format=%d items=%d: %w", FramebufferProperty, format, numItems, ErrPropertyMissing)
	}
	// X replies arrive in the server's byte order, which xgb always
	// negotiates as little-endian
	return binary.LittleEndian.Uint32(data), nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		log.Debug().Msg("closed X connection")
	}
}
