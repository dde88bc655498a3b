package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatsino/internal/models"

	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

// Chatroom is public unless it has a whitelist. A blacklisted client is
// kept out of any room.
type Chatroom struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Whitelist   []int64 `json:"-"`
	Blacklist   []int64 `json:"-"`
}

func (r *Chatroom) Private() bool {
	return len(r.Whitelist) > 0
}

func (r *Chatroom) Allows(clientID int64) bool {
	if slices.Contains(r.Blacklist, clientID) {
		return false
	}
	return !r.Private() || slices.Contains(r.Whitelist, clientID)
}

type ChatroomInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	ClientID  int64     `json:"clientId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

var DefaultChatrooms = []Chatroom{
	{Title: "Lobby", Description: "Talk about anything."},
	{Title: "Slots", Description: "Reels, lines and near misses."},
	{Title: "Blackjack", Description: "Hit, stay, argue about insurance."},
	{Title: "Roulette", Description: "Red or black?"},
	{Title: "Racing", Description: "Pick your horse."},
	{Title: "Crossing", Description: "Why did the chicken cross the road?"},
}

// ChatroomService keeps room definitions in memory and membership plus
// message history in Redis, so every gateway process sees the same rooms.
type ChatroomService struct {
	cache *RedisService
	log   *log.Entry

	mu    sync.RWMutex
	rooms map[string]*Chatroom
}

func NewChatroomService(cache *RedisService, rooms []Chatroom, logger *log.Entry) *ChatroomService {
	s := &ChatroomService{
		cache: cache,
		log:   logger.WithField("service", "chatroom"),
		rooms: make(map[string]*Chatroom, len(rooms)),
	}
	for i := range rooms {
		room := rooms[i]
		s.rooms[strings.ToLower(room.Title)] = &room
	}
	return s
}

func (s *ChatroomService) room(title string) (*Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[strings.ToLower(title)]
	if !ok {
		return nil, models.ErrNonexistentRoom
	}
	return room, nil
}

func (s *ChatroomService) accessible(clientID int64, title string) (*Chatroom, error) {
	room, err := s.room(title)
	if err != nil {
		return nil, err
	}
	if !room.Allows(clientID) {
		return nil, models.ErrNotAllowedInRoom
	}
	return room, nil
}

// List returns every room the client may enter, public rooms first.
func (s *ChatroomService) List(clientID int64) []ChatroomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var public, private []ChatroomInfo
	for _, room := range s.rooms {
		if !room.Allows(clientID) {
			continue
		}
		info := ChatroomInfo{Title: room.Title, Description: room.Description, Private: room.Private()}
		if info.Private {
			private = append(private, info)
		} else {
			public = append(public, info)
		}
	}
	byTitle := func(list []ChatroomInfo) {
		sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	}
	byTitle(public)
	byTitle(private)
	return append(public, private...)
}

// Join moves the client into title, leaving any room it was in.
func (s *ChatroomService) Join(ctx context.Context, clientID int64, title string) (ChatroomInfo, error) {
	room, err := s.accessible(clientID, title)
	if err != nil {
		return ChatroomInfo{}, err
	}
	if err := s.LeaveAll(ctx, clientID); err != nil {
		return ChatroomInfo{}, err
	}

	client := s.cache.Client()
	pipe := client.TxPipeline()
	pipe.SAdd(ctx, fmt.Sprintf(KeyChatroomMembers, room.Title), clientID)
	pipe.SAdd(ctx, fmt.Sprintf(KeyClientChatrooms, clientID), room.Title)
	if _, err := pipe.Exec(ctx); err != nil {
		return ChatroomInfo{}, fmt.Errorf("failed to join chatroom: %w", err)
	}
	return ChatroomInfo{Title: room.Title, Description: room.Description, Private: room.Private()}, nil
}

func (s *ChatroomService) LeaveAll(ctx context.Context, clientID int64) error {
	client := s.cache.Client()
	key := fmt.Sprintf(KeyClientChatrooms, clientID)

	rooms, err := client.SMembers(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to list joined chatrooms: %w", err)
	}
	pipe := client.TxPipeline()
	for _, title := range rooms {
		pipe.SRem(ctx, fmt.Sprintf(KeyChatroomMembers, title), clientID)
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to leave chatrooms: %w", err)
	}
	return nil
}

func (s *ChatroomService) Members(ctx context.Context, title string) ([]int64, error) {
	room, err := s.room(title)
	if err != nil {
		return nil, err
	}
	raw, err := s.cache.Client().SMembers(ctx, fmt.Sprintf(KeyChatroomMembers, room.Title)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chatroom members: %w", err)
	}
	members := make([]int64, 0, len(raw))
	for _, m := range raw {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		members = append(members, id)
	}
	slices.Sort(members)
	return members, nil
}

// Send stores the message and returns it with the member list it should be
// fanned out to. A sender outside the room joins it first.
func (s *ChatroomService) Send(ctx context.Context, from models.ClientIdentity, title, text string) (ChatMessage, []int64, error) {
	room, err := s.accessible(from.ID, title)
	if err != nil {
		return ChatMessage{}, nil, err
	}

	member, err := s.cache.Client().SIsMember(ctx, fmt.Sprintf(KeyChatroomMembers, room.Title), from.ID).Result()
	if err != nil {
		return ChatMessage{}, nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		if _, err := s.Join(ctx, from.ID, room.Title); err != nil {
			return ChatMessage{}, nil, err
		}
	}

	msg := ChatMessage{
		ID:        models.GenerateMessageID(),
		Room:      room.Title,
		ClientID:  from.ID,
		Username:  from.Username,
		Message:   strings.TrimSpace(text),
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return ChatMessage{}, nil, err
	}

	key := fmt.Sprintf(KeyChatroomMessages, room.Title)
	pipe := s.cache.Client().TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, MaxChatroomMessages-1)
	pipe.Expire(ctx, key, TTLChatroomMessages)
	if _, err := pipe.Exec(ctx); err != nil {
		return ChatMessage{}, nil, fmt.Errorf("failed to store chat message: %w", err)
	}

	members, err := s.Members(ctx, room.Title)
	if err != nil {
		return ChatMessage{}, nil, err
	}
	return msg, members, nil
}

// Messages returns the room's recent history, oldest first.
func (s *ChatroomService) Messages(ctx context.Context, clientID int64, title string) ([]ChatMessage, error) {
	room, err := s.accessible(clientID, title)
	if err != nil {
		return nil, err
	}

	raw, err := s.cache.Client().LRange(ctx, fmt.Sprintf(KeyChatroomMessages, room.Title), 0, MaxChatroomMessages-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	messages := make([]ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			s.log.WithError(err).Warn("skipping malformed chat message")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
