package stencil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const channelBufferSize = 8

// HttpServer serves the preview page, the latest render and a websocket that
// pushes every new render.
type HttpServer struct {
	broadcaster *FrameBroadcaster
	addr        string
	mux         *http.ServeMux
	logger      logrus.FieldLogger
}

func NewHttpServer(broadcaster *FrameBroadcaster, addr string) *HttpServer {
	s := &HttpServer{
		broadcaster: broadcaster,
		addr:        addr,
		mux:         http.NewServeMux(),
		logger:      logrus.WithField("tag", "HttpServer"),
	}

	subFS, err := fs.Sub(webuiFiles, "webui")
	if err != nil {
		panic(err)
	}

	s.mux.Handle("/", http.FileServer(http.FS(subFS)))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/metadata", s.handleMetadata)
	s.mux.HandleFunc("/plot.png", s.handlePlot)

	return s
}

func (s *HttpServer) Handler() http.Handler {
	return s.mux
}

func (s *HttpServer) writeMessage(ctx context.Context, c *websocket.Conn, msg WSMessage) error {
	buf, err := EncodeWSMessage(msg)
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageBinary, buf)
}

// writeFrame sends the frame's metadata followed by the frame itself.
func (s *HttpServer) writeFrame(ctx context.Context, c *websocket.Conn, frame Frame) error {
	if err := s.writeMessage(ctx, c, newWSMessage(MessageTypeMetadata, frame.Metadata)); err != nil {
		return err
	}
	return s.writeMessage(ctx, c, newWSMessage(MessageTypeFrame, FrameMessage{
		Revision: frame.Revision,
		PNG:      frame.PNG,
	}))
}

func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := req.Context()
	ctx = c.CloseRead(ctx)

	channel := make(chan Frame, channelBufferSize)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case frame, open := <-channel:
				if !open {
					s.logger.Warn("frame channel closed, closing websocket")
					c.Close(websocket.StatusNormalClosure, "channel closed")
					return
				}

				if frame.streamEnded {
					end := StreamEndMessage{}
					if frame.streamErr != nil {
						end.Error = true
						end.Msg = frame.streamErr.Error()
					}
					if err := s.writeMessage(ctx, c, newWSMessage(MessageTypeStreamEnd, end)); err != nil {
						s.logger.WithError(err).Warn("failed to send stream end")
					}
					c.Close(websocket.StatusNormalClosure, "stream ended")
					return
				}

				if err := s.writeFrame(ctx, c, frame); err != nil {
					s.logger.WithError(err).Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	s.broadcaster.RegisterChannel(ctx, channel)

	wg.Wait()
	s.broadcaster.DeregisterChannel(ctx, channel)

	// The broadcaster may have sent into the channel while we were waiting
	// for the lock. Drain it so nothing is left behind.
	for len(channel) > 0 {
		<-channel
	}
	close(channel)
}

func (s *HttpServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	frame, ok := s.broadcaster.Latest()
	if !ok {
		http.Error(w, "nothing rendered yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frame.Metadata); err != nil {
		s.logger.WithError(err).Warn("failed to write metadata")
	}
}

func (s *HttpServer) handlePlot(w http.ResponseWriter, req *http.Request) {
	frame, ok := s.broadcaster.Latest()
	if !ok {
		http.Error(w, "nothing rendered yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Add("Content-Type", "image/png")
	w.Header().Add("Cache-Control", "no-store")
	if _, err := w.Write(frame.PNG); err != nil {
		s.logger.WithError(err).Debug("failed to write plot")
	}
}

// Run serves until ctx is done. With open set the preview page is opened in
// a browser once the server listens.
func (s *HttpServer) Run(ctx context.Context, open bool) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.addr, err)
	}

	url := fmt.Sprintf("http://%s", listener.Addr())
	s.logger.Infof("starting HTTP server at %s", url)
	if open {
		openBrowser(url)
	}

	srv := &http.Server{Handler: s.mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
