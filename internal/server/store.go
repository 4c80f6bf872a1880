package server

import (
	"sort"
	"sync"
	"time"
)

// Store owns every Room. Nothing else holds authoritative room state; timer
// and judging callbacks re-fetch by code instead of caching entities across
// asynchronous boundaries.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom creates a room with a fresh code, retrying on the (unlikely)
// collision, and installs the creator as host.
func (s *Store) CreateRoom(hostID, nickname string) *Room {
	for {
		room, err := s.CreateRoomWithCode(newRoomCode(), hostID, nickname)
		if err == nil {
			return room
		}
	}
}

// CreateRoomWithCode fails with ErrDuplicateRoom when the code is taken.
func (s *Store) CreateRoomWithCode(code, hostID, nickname string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[code]; exists {
		return nil, ErrDuplicateRoom
	}
	room := &Room{
		Code:   code,
		HostID: hostID,
		Players: map[string]PlayerInfo{
			hostID: {Nickname: nickname},
		},
		Phase:     phaseLobby,
		CreatedAt: time.Now().UTC(),
	}
	s.rooms[code] = room
	return room, nil
}

// GetRoom is a pure lookup.
func (s *Store) GetRoom(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	return room, ok
}

// UpdateRoom runs update with the store lock held. This is the only mutation
// path for room state; player changes, submission appends and phase
// transitions are atomic with respect to each other because they all pass
// through here.
func (s *Store) UpdateRoom(code string, update func(room *Room) error) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if err := update(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) AddPlayer(code, playerID, nickname string, maxPlayers int) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if _, exists := room.Players[playerID]; !exists {
		if maxPlayers > 0 && len(room.Players) >= maxPlayers {
			return nil, ErrLobbyFull
		}
	}
	room.Players[playerID] = PlayerInfo{Nickname: nickname}
	return room, nil
}

// RemovePlayer removes a player and reports whether the room was destroyed.
// A departing host always closes the room regardless of who remains; a room
// emptied of players is closed too. Destruction is irreversible, so callers
// must broadcast room-closed or the updated player list based on the flag.
func (s *Store) RemovePlayer(code, playerID string) (room *Room, roomClosed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	delete(room.Players, playerID)
	if playerID == room.HostID || len(room.Players) == 0 {
		delete(s.rooms, code)
		return room, true, nil
	}
	return room, false, nil
}

// DestroyRoom drops a room outright (host quit path).
func (s *Store) DestroyRoom(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	delete(s.rooms, code)
	return room, true
}

// RoomsWithPlayer returns the codes of every room containing the player.
// A player only legitimately belongs to one room, but disconnect cleanup
// sweeps all of them rather than assuming that.
func (s *Store) RoomsWithPlayer(playerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, 1)
	for code, room := range s.rooms {
		if _, ok := room.Players[playerID]; ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func (s *Store) ListRoomSummaries() []RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]RoomSummary, 0, len(s.rooms))
	for _, room := range s.rooms {
		list = append(list, RoomSummary{
			Code:    room.Code,
			Phase:   room.Phase,
			Players: len(room.Players),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Code < list[j].Code
	})
	return list
}
