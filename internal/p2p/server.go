// Package p2p gossips validated blocks between nodes over libp2p,
// adapted from the teacher's network.go. Bootstrap peers are parsed
// with github.com/multiformats/go-multiaddr, a teacher dependency the
// original program's go.mod carried but never imported (it only ever
// discovered peers via mDNS).
package p2p

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/libp2p/go-libp2p"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"

	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/chain"
	"github.com/sole-chain/sole-poa/internal/txn"
)

const (
	protocolID         = "/sole-poa/1.0.0"
	discoveryNamespace = "sole-poa-validators"
	commandLength      = 12
)

// OnBlock is invoked with every block received from a peer and
// accepted into the local chain; blocks appended by other means do not
// trigger it. Callers wire this to internal/api's live feed.
type OnBlock func(*block.Block)

// Server gossips blocks over libp2p, validating everything it
// receives through Chain before accepting it.
type Server struct {
	Host  host.Host
	chain *chain.Chain
	known map[string]bool
	onBlk OnBlock
}

// New creates a libp2p host listening on port, wires mDNS discovery,
// and connects to any static bootstrap multiaddrs supplied.
func New(ctx context.Context, port int, c *chain.Chain, bootstrap []string, onBlock OnBlock) (*Server, error) {
	priv, _, err := p2pcrypto.GenerateKeyPair(p2pcrypto.Ed25519, 0)
	if err != nil {
		return nil, fmt.Errorf("p2p: generate host identity: %w", err)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port)),
		libp2p.Identity(priv),
	)
	if err != nil {
		return nil, fmt.Errorf("p2p: create host: %w", err)
	}

	s := &Server{Host: h, chain: c, known: make(map[string]bool), onBlk: onBlock}
	h.SetStreamHandler(protocolID, s.handleStream)

	svc := mdns.NewMdnsService(h, discoveryNamespace, &discoveryNotifee{host: h, server: s})
	if err := svc.Start(); err != nil {
		return nil, fmt.Errorf("p2p: start mdns: %w", err)
	}

	for _, raw := range bootstrap {
		addr, err := multiaddr.NewMultiaddr(raw)
		if err != nil {
			log.Printf("p2p: invalid bootstrap address %q: %v", raw, err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			log.Printf("p2p: invalid bootstrap peer info %q: %v", raw, err)
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			log.Printf("p2p: connect to bootstrap peer %s: %v", info.ID, err)
			continue
		}
		s.sendVersion(info.ID)
	}

	return s, nil
}

type discoveryNotifee struct {
	host   host.Host
	server *Server
}

func (n *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.host.ID() {
		return
	}
	if err := n.host.Connect(context.Background(), pi); err != nil {
		if !strings.Contains(err.Error(), "dial to self attempted") {
			log.Printf("p2p: connect to discovered peer %s: %v", pi.ID, err)
		}
		return
	}
	n.server.sendVersion(pi.ID)
}

// BroadcastBlock gossips b (freshly forged or appended) to every
// connected peer.
func (s *Server) BroadcastBlock(b *block.Block) {
	for _, p := range s.Host.Network().Peers() {
		s.sendBlock(p, b)
	}
}

func (s *Server) handleStream(stream network.Stream) {
	rw := bufio.NewReadWriter(bufio.NewReader(stream), bufio.NewWriter(stream))
	go s.readData(rw, stream.Conn().RemotePeer())
}

func (s *Server) readData(rw *bufio.ReadWriter, peerID peer.ID) {
	payload, err := io.ReadAll(rw)
	if err != nil || len(payload) < commandLength {
		return
	}

	command := bytesToCommand(payload[:commandLength])
	content := payload[commandLength:]

	switch command {
	case "version":
		s.handleVersion(content, peerID)
	case "getblocks":
		s.handleGetBlocks(peerID)
	case "getdata":
		s.handleGetData(content, peerID)
	case "block":
		s.handleBlock(content)
	default:
		log.Printf("p2p: unknown command %q from %s", command, peerID)
	}
}

type versionMsg struct {
	Height   uint64
	AddrFrom string
}

type getDataMsg struct {
	Index uint64
}

type blockMsg struct {
	Encoded []byte
}

func (s *Server) handleVersion(raw []byte, peerID peer.ID) {
	var v versionMsg
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return
	}
	if s.known[peerID.String()] {
		return
	}
	s.known[peerID.String()] = true

	if s.chain.Height() < v.Height {
		s.sendGetBlocks(peerID)
	} else if s.chain.Height() > v.Height {
		s.sendVersion(peerID)
	}
}

func (s *Server) handleGetBlocks(peerID peer.ID) {
	height := s.chain.Height()
	for i := uint64(0); i <= height; i++ {
		s.sendGetDataReply(peerID, i)
	}
}

func (s *Server) sendGetDataReply(peerID peer.ID, index uint64) {
	b, err := s.chain.GetBlock(index)
	if err != nil {
		return
	}
	s.sendBlock(peerID, b)
}

func (s *Server) handleGetData(raw []byte, peerID peer.ID) {
	var req getDataMsg
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&req); err != nil {
		return
	}
	b, err := s.chain.GetBlock(req.Index)
	if err != nil {
		return
	}
	s.sendBlock(peerID, b)
}

func decodeTx(data []byte) (block.Transaction, error) { return txn.FromBytes(data) }

func (s *Server) handleBlock(raw []byte) {
	var m blockMsg
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return
	}
	b, err := block.Decode(m.Encoded, decodeTx)
	if err != nil {
		log.Printf("p2p: decode received block: %v", err)
		return
	}
	if err := s.chain.Append(b); err != nil {
		log.Printf("p2p: rejected block %d: %v", b.Index, err)
		return
	}
	if s.onBlk != nil {
		s.onBlk(b)
	}
}

func (s *Server) sendVersion(peerID peer.ID) {
	s.send(peerID, "version", versionMsg{Height: s.chain.Height(), AddrFrom: s.Host.ID().String()})
}

func (s *Server) sendGetBlocks(peerID peer.ID) {
	s.send(peerID, "getblocks", struct{}{})
}

func (s *Server) sendBlock(peerID peer.ID, b *block.Block) {
	s.send(peerID, "block", blockMsg{Encoded: b.Encode()})
}

func (s *Server) send(peerID peer.ID, command string, payload interface{}) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		log.Printf("p2p: encode %s payload: %v", command, err)
		return
	}

	stream, err := s.Host.NewStream(context.Background(), peerID, protocolID)
	if err != nil {
		return
	}
	defer stream.Close()

	if _, err := stream.Write(append(commandToBytes(command), buf.Bytes()...)); err != nil {
		log.Printf("p2p: write to %s: %v", peerID, err)
	}
}

func commandToBytes(command string) []byte {
	b := make([]byte, commandLength)
	copy(b, command)
	return b
}

func bytesToCommand(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
