package grpcweb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Bridge translates gRPC-Web (browser HTTP/1.1) → native gRPC via TCP.
// Payloads are forwarded as raw bytes, so it serves any method of the
// backend; streams listed in streams are relayed frame by frame.
type Bridge struct {
	conn    *grpc.ClientConn
	streams map[string]*grpc.StreamDesc
	log     zerolog.Logger
}

// New dials the gRPC server at addr (e.g. "localhost:50051"). streams maps
// full method names of server-streaming methods to their descriptors.
func New(addr string, streams map[string]*grpc.StreamDesc, log zerolog.Logger, opts ...grpc.DialOption) (*Bridge, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	return &Bridge{conn: conn, streams: streams, log: log.With().Str("component", "grpcweb").Logger()}, nil
}

func (b *Bridge) Close() { b.conn.Close() }

// Handler returns an http.Handler that translates gRPC-Web → gRPC.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, X-Grpc-Web, X-User-Agent, Authorization, x-grpc-web")
		w.Header().Set("Access-Control-Expose-Headers",
			"Grpc-Status, Grpc-Message, Grpc-Status-Details-Bin, grpc-status, grpc-message")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/grpc-web") {
			http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
			return
		}

		b.log.Debug().Str("method", r.URL.Path).Msg("grpc-web")
		b.forward(w, r)
	})
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return
	}
	if len(body) < 5 {
		writeError(w, codes.InvalidArgument, "body too short")
		return
	}

	// grpc-web frame: 1-byte flag + 4-byte big-endian length + protobuf
	msgLen := binary.BigEndian.Uint32(body[1:5])
	if int(msgLen)+5 > len(body) {
		writeError(w, codes.InvalidArgument, "incomplete frame")
		return
	}
	payload := body[5 : 5+msgLen]

	// forward metadata
	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	if desc, ok := b.streams[r.URL.Path]; ok {
		b.relay(ctx, w, desc, r.URL.Path, payload)
		return
	}

	// invoke gRPC method using raw codec (pass-through bytes)
	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st, _ := status.FromError(err)
		b.log.Debug().Str("code", st.Code().String()).Str("msg", st.Message()).Msg("grpc-web error")
		writeError(w, st.Code(), st.Message())
		return
	}

	writeHeader(w)
	writeFrame(w, 0x00, resp.data)
	writeFrame(w, 0x80, []byte("grpc-status:0\r\n"))
}

// relay copies each message of a server stream into its own data frame and
// flushes it, then ends with the trailer frame.
func (b *Bridge) relay(ctx context.Context, w http.ResponseWriter, desc *grpc.StreamDesc, method string, payload []byte) {
	stream, err := b.conn.NewStream(ctx, desc, method, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st, _ := status.FromError(err)
		writeError(w, st.Code(), st.Message())
		return
	}
	// io.EOF means the server already ended the stream; RecvMsg reports why
	if err := stream.SendMsg(&rawMsg{data: payload}); err != nil && !errors.Is(err, io.EOF) {
		st, _ := status.FromError(err)
		writeError(w, st.Code(), st.Message())
		return
	}
	_ = stream.CloseSend()

	flusher, _ := w.(http.Flusher)
	wroteHeader := false
	for {
		m := &rawMsg{}
		err := stream.RecvMsg(m)
		if err != nil {
			if !wroteHeader {
				writeHeader(w)
			}
			if errors.Is(err, io.EOF) {
				writeFrame(w, 0x80, []byte("grpc-status:0\r\n"))
				return
			}
			st, _ := status.FromError(err)
			writeFrame(w, 0x80, trailer(st.Code(), st.Message()))
			return
		}
		if !wroteHeader {
			writeHeader(w)
			wroteHeader = true
		}
		writeFrame(w, 0x00, m.data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// rawMsg wraps raw protobuf bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through without marshal/unmarshal.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}
func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}
func (rawCodec) Name() string { return "raw" }

func trailer(code codes.Code, msg string) []byte {
	return []byte(fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, msg))
}

func writeHeader(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/grpc-web+proto")
	w.WriteHeader(http.StatusOK)
}

func writeFrame(w io.Writer, flag byte, data []byte) {
	f := make([]byte, 5+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:5], uint32(len(data)))
	copy(f[5:], data)
	w.Write(f)
}

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	writeHeader(w)
	writeFrame(w, 0x80, trailer(code, msg))
}
