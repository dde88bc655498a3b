package services

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"chatsino/internal/models"

	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

// ClientFinder resolves a username to the client it belongs to.
type ClientFinder interface {
	FindClientByUsername(ctx context.Context, username string) (models.ClientIdentity, error)
}

type ticketPayload struct {
	IssuedAt time.Time `json:"issuedAt"`
	IssuedTo string    `json:"issuedTo"`
	Username string    `json:"username"`
}

// TicketService issues one-time, address-bound tickets that trade a session
// for a socket connection.
type TicketService struct {
	cache   *RedisService
	clients ClientFinder
	block   cipher.Block
	ttl     time.Duration
	now     func() time.Time
	log     *log.Entry
}

func NewTicketService(cache *RedisService, clients ClientFinder, secret string, ttl time.Duration, logger *log.Entry) (*TicketService, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("ticket secret must be 32 bytes, got %d", len(secret))
	}
	block, err := aes.NewCipher([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("ticket cipher: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketService{
		cache:   cache,
		clients: clients,
		block:   block,
		ttl:     ttl,
		now:     time.Now,
		log:     logger.WithField("service", "ticket"),
	}, nil
}

func (s *TicketService) GrantTicket(ctx context.Context, username, remoteAddress string) (string, error) {
	client, err := s.clients.FindClientByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	host := hostOf(remoteAddress)
	if host == "" {
		return "", models.ErrInvalidTicketInput
	}

	plain, err := json.Marshal(ticketPayload{IssuedAt: s.now().UTC(), IssuedTo: host, Username: username})
	if err != nil {
		return "", err
	}
	ticket, err := s.encrypt(plain)
	if err != nil {
		return "", err
	}

	snapshot, err := json.Marshal(client)
	if err != nil {
		return "", err
	}
	if err := s.cache.SetTicket(ctx, ticket, snapshot, s.ttl); err != nil {
		return "", err
	}

	s.log.WithFields(log.Fields{"client_id": client.ID, "issued_to": host}).Debug("ticket granted")
	return ticket, nil
}

// ValidateTicket consumes ticket and returns the identity it was issued for.
// The cache entry is gone after this call whatever the outcome.
func (s *TicketService) ValidateTicket(ctx context.Context, ticket, remoteAddress string) (models.ClientIdentity, error) {
	snapshot, err := s.cache.TakeTicket(ctx, ticket)
	if err != nil {
		return models.ClientIdentity{}, err
	}
	if snapshot == nil {
		return models.ClientIdentity{}, models.ErrTicketNotFound
	}

	var client models.ClientIdentity
	if err := json.Unmarshal(snapshot, &client); err != nil {
		return models.ClientIdentity{}, fmt.Errorf("decode ticket snapshot: %w", err)
	}

	plain, err := s.decrypt(ticket)
	if err != nil {
		return models.ClientIdentity{}, models.ErrTicketLocationMismatch
	}
	var payload ticketPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return models.ClientIdentity{}, models.ErrTicketLocationMismatch
	}
	if payload.Username != client.Username || payload.IssuedTo != hostOf(remoteAddress) {
		return models.ClientIdentity{}, models.ErrTicketLocationMismatch
	}
	return client, nil
}

// encrypt is AES-256-CBC with a fresh IV, shipped as
// base64(hex(ciphertext) + "&" + hex(iv)).
func (s *TicketService) encrypt(plain []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("ticket iv: %w", err)
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(out, padded)

	raw := hex.EncodeToString(out) + "&" + hex.EncodeToString(iv)
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

func (s *TicketService) decrypt(ticket string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ticket)
	if err != nil {
		return nil, err
	}
	ctHex, ivHex, ok := strings.Cut(string(raw), "&")
	if !ok {
		return nil, errors.New("malformed ticket")
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("malformed ticket")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(out, ct)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("bad padding")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}

// hostOf strips the port from an address; tickets are bound to the host
// only since the client's source port changes between requests.
func hostOf(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
