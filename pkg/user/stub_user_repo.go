package user

import (
	"context"
)

type StubUserRepository struct {
	data map[string]User
}

func NewStubUserRepository(users ...User) *StubUserRepository {
	data := map[string]User{}
	for _, u := range users {
		data[u.Uid] = u
	}
	return &StubUserRepository{data: data}
}

func (s *StubUserRepository) GetUserByUid(ctx context.Context, uid string) (User, error) {
	u, ok := s.data[uid]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *StubUserRepository) GetDisplayNames(ctx context.Context, uids []string) (map[string]string, error) {
	names := make(map[string]string, len(uids))
	for _, uid := range uids {
		if u, ok := s.data[uid]; ok {
			names[uid] = u.DisplayName
		}
	}
	return names, nil
}
