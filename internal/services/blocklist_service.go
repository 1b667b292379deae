package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/models"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
)

var ErrBlockRuleNotFound = errors.New("block rule not found")

// BlocklistService manages persisted block list rules. Rules are read once
// at startup; changes take effect on the next restart.
type BlocklistService struct {
	db *gorm.DB
}

func NewBlocklistService(db *gorm.DB) *BlocklistService {
	return &BlocklistService{db: db}
}

// Add validates and stores an enabled rule. Adding an existing rule
// re-enables it and updates the reason.
func (s *BlocklistService) Add(cidr, reason string) (*models.BlockedIP, error) {
	cidr = strings.TrimSpace(cidr)
	if _, err := security.ParseBlockRule(cidr); err != nil {
		return nil, err
	}

	var existing models.BlockedIP
	err := s.db.Where("cidr = ?", cidr).First(&existing).Error
	if err == nil {
		existing.Enabled = true
		existing.Reason = reason
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rule := &models.BlockedIP{UUID: uuid.New().String(), CIDR: cidr, Reason: reason, Enabled: true}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// Disable turns off the rule with the given UUID.
func (s *BlocklistService) Disable(id string) error {
	res := s.db.Model(&models.BlockedIP{}).Where("uuid = ?", id).Update("enabled", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBlockRuleNotFound
	}
	return nil
}

// List returns all rules, newest first.
func (s *BlocklistService) List() ([]models.BlockedIP, error) {
	var rules []models.BlockedIP
	if err := s.db.Order("created_at desc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// EnabledRules returns the CIDR strings of all enabled rules.
func (s *BlocklistService) EnabledRules() ([]string, error) {
	var cidrs []string
	if err := s.db.Model(&models.BlockedIP{}).Where("enabled = ?", true).Order("id").Pluck("cidr", &cidrs).Error; err != nil {
		return nil, err
	}
	return cidrs, nil
}
