package service

import (
	"errors"

	"relay-system/internal/model"
	"relay-system/internal/repository"
)

type PairingService struct {
	pairings *repository.PairingRepository
	users    *repository.UserRepository
}

func NewPairingService(pairings *repository.PairingRepository, users *repository.UserRepository) *PairingService {
	return &PairingService{pairings: pairings, users: users}
}

// CreatePairing 建立配对
// 双方都必须存在且都没有生效中的配对
func (s *PairingService) CreatePairing(userID, partnerID uint) (*model.Pairing, error) {
	if userID == partnerID {
		return nil, errors.New("不能和自己配对")
	}
	if _, err := s.users.GetByID(partnerID); err != nil {
		return nil, errors.New("对方用户不存在")
	}

	for _, id := range []uint{userID, partnerID} {
		existing, err := s.pairings.FindActiveByUser(id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errors.New("已经存在生效中的配对")
		}
	}

	pairing := &model.Pairing{
		User1ID: userID,
		User2ID: partnerID,
		Status:  model.PairingConnected,
	}
	if err := s.pairings.Create(pairing); err != nil {
		return nil, err
	}
	return pairing, nil
}

// GetMine 查询当前用户的生效配对，没有则返回ErrNotPaired
func (s *PairingService) GetMine(userID uint) (*model.Pairing, *model.User, error) {
	pairing, err := s.pairings.FindActiveByUser(userID)
	if err != nil {
		return nil, nil, err
	}
	if pairing == nil {
		return nil, nil, ErrNotPaired
	}

	partner, err := s.users.GetByID(pairing.PartnerOf(userID))
	if err != nil {
		return nil, nil, err
	}
	return pairing, partner, nil
}

// Disconnect 解除当前用户的配对
func (s *PairingService) Disconnect(userID uint) error {
	pairing, err := s.pairings.FindActiveByUser(userID)
	if err != nil {
		return err
	}
	if pairing == nil {
		return ErrNotPaired
	}
	return s.pairings.Disconnect(pairing.ID)
}
