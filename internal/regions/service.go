package regions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const treeCacheTTL = 5 * time.Minute

// Service maintains the per-organization forest of regions. Cache is
// optional; when nil the hierarchy tree is rebuilt on every request.
type Service struct {
	DB    *gorm.DB
	Cache *redis.Client
}

type CreateRegionInput struct {
	OrganizationID uuid.UUID
	Code           string
	Name           string
	Description    string
	ParentID       *uuid.UUID
	LevelType      string
	Boundary       *domain.GeoMultiPolygon
	Metadata       datatypes.JSONMap
}

type UpdateRegionInput struct {
	Name        *string
	Description *string
	ParentID    *uuid.UUID
	ClearParent bool
	LevelType   *string
	Boundary    *domain.GeoMultiPolygon
	IsActive    *bool
	Metadata    datatypes.JSONMap
}

// CreateRegion inserts a region, deriving level from the live parent link and
// center/area from the boundary. The parent lookup and write run in one
// transaction so the hierarchy cannot be raced into a cycle.
func (s *Service) CreateRegion(ctx context.Context, in CreateRegionInput) (*domain.Region, error) {
	if in.Boundary != nil {
		if err := geo.Validate(in.Boundary.MultiPolygon); err != nil {
			return nil, err
		}
	}

	region := &domain.Region{
		OrganizationID: in.OrganizationID,
		Code:           in.Code,
		Name:           in.Name,
		Description:    in.Description,
		ParentID:       in.ParentID,
		LevelType:      in.LevelType,
		Boundary:       in.Boundary,
		IsActive:       true,
		Metadata:       in.Metadata,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Region{}).
			Where("organization_id = ? AND code = ?", in.OrganizationID, in.Code).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateCode
		}

		if err := deriveLevel(tx, region); err != nil {
			return err
		}
		if err := deriveGeometry(region); err != nil {
			return err
		}
		return tx.Create(region).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTree(ctx, in.OrganizationID)
	return region, nil
}

// UpdateRegion applies changes and re-derives level, center point and area.
// A parent assignment that would make the region its own ancestor fails with
// ErrInvalidHierarchy and leaves the hierarchy unchanged. Descendant levels
// are recomputed in the same transaction when the region moves.
func (s *Service) UpdateRegion(ctx context.Context, regionID uuid.UUID, in UpdateRegionInput) (*domain.Region, error) {
	if in.Boundary != nil {
		if err := geo.Validate(in.Boundary.MultiPolygon); err != nil {
			return nil, err
		}
	}

	var region domain.Region
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("region_id = ?", regionID).First(&region).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegionNotFound
			}
			return err
		}

		if in.Name != nil {
			region.Name = *in.Name
		}
		if in.Description != nil {
			region.Description = *in.Description
		}
		if in.LevelType != nil {
			region.LevelType = *in.LevelType
		}
		if in.IsActive != nil {
			region.IsActive = *in.IsActive
		}
		if in.Metadata != nil {
			region.Metadata = in.Metadata
		}
		if in.Boundary != nil {
			region.Boundary = in.Boundary
			// Boundary changed: stale cache fields must be re-derived.
			region.CenterPoint = nil
			region.AreaSqKm = nil
		}

		reparented := false
		if in.ClearParent {
			region.ParentID = nil
			reparented = true
		} else if in.ParentID != nil {
			if err := checkNoCycle(tx, regionID, *in.ParentID); err != nil {
				return err
			}
			region.ParentID = in.ParentID
			reparented = true
		}

		oldLevel := region.Level
		if err := deriveLevel(tx, &region); err != nil {
			return err
		}
		if err := deriveGeometry(&region); err != nil {
			return err
		}
		if err := tx.Save(&region).Error; err != nil {
			return err
		}

		if reparented || region.Level != oldLevel {
			return recomputeDescendantLevels(tx, &region)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTree(ctx, region.OrganizationID)
	return &region, nil
}

// deriveLevel recomputes level from the live parent: 0 without a parent,
// parent.level+1 otherwise. A parent in another organization is rejected.
func deriveLevel(tx *gorm.DB, region *domain.Region) error {
	if region.ParentID == nil {
		region.Level = 0
		return nil
	}
	var parent domain.Region
	if err := tx.Where("region_id = ?", *region.ParentID).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidHierarchy
		}
		return err
	}
	if parent.OrganizationID != region.OrganizationID {
		return ErrInvalidHierarchy
	}
	region.Level = parent.Level + 1
	return nil
}

// deriveGeometry fills center point and area from the boundary when either is
// unset. These are cache fields: absent boundary leaves them untouched.
func deriveGeometry(region *domain.Region) error {
	if region.Boundary == nil {
		return nil
	}
	if region.AreaSqKm == nil {
		areaM2, err := geo.ProjectedArea(region.Boundary.MultiPolygon)
		if err != nil {
			return err
		}
		sqkm := areaM2 / 1_000_000
		region.AreaSqKm = &sqkm
	}
	if region.CenterPoint == nil {
		c, err := geo.Centroid(region.Boundary.MultiPolygon)
		if err != nil {
			return err
		}
		region.CenterPoint = &domain.GeoPoint{Point: c}
	}
	return nil
}

// checkNoCycle walks the proposed ancestor chain and rejects the assignment
// if the region being saved appears in it (a region can never be its own
// ancestor). Must run inside the write transaction.
func checkNoCycle(tx *gorm.DB, regionID, proposedParentID uuid.UUID) error {
	if proposedParentID == regionID {
		return ErrInvalidHierarchy
	}
	cursor := proposedParentID
	seen := map[uuid.UUID]struct{}{}
	for {
		if _, ok := seen[cursor]; ok {
			// Pre-existing cycle in stored data; refuse to extend it.
			return ErrInvalidHierarchy
		}
		seen[cursor] = struct{}{}

		var parent domain.Region
		if err := tx.Select("region_id", "parent_id").Where("region_id = ?", cursor).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidHierarchy
			}
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == regionID {
			return ErrInvalidHierarchy
		}
		cursor = *parent.ParentID
	}
}

// recomputeDescendantLevels walks the subtree breadth-first and rewrites each
// child's level so level == parent.level + 1 holds for every stored region.
func recomputeDescendantLevels(tx *gorm.DB, root *domain.Region) error {
	frontier := []*domain.Region{root}
	for len(frontier) > 0 {
		next := make([]*domain.Region, 0)
		for _, node := range frontier {
			var children []domain.Region
			if err := tx.Where("parent_id = ?", node.RegionID).Find(&children).Error; err != nil {
				return err
			}
			for i := range children {
				child := &children[i]
				want := node.Level + 1
				if child.Level != want {
					if err := tx.Model(&domain.Region{}).
						Where("region_id = ?", child.RegionID).
						Update("level", want).Error; err != nil {
						return err
					}
					child.Level = want
				}
				next = append(next, child)
			}
		}
		frontier = next
	}
	return nil
}

// GetRegion loads one region by id.
func (s *Service) GetRegion(ctx context.Context, regionID uuid.UUID) (*domain.Region, error) {
	var region domain.Region
	if err := s.DB.WithContext(ctx).Where("region_id = ?", regionID).First(&region).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegionNotFound
		}
		return nil, err
	}
	return &region, nil
}

// Ancestors walks parent links to the root, leaf-to-root order.
func (s *Service) Ancestors(ctx context.Context, region *domain.Region) ([]domain.Region, error) {
	var out []domain.Region
	cursor := region.ParentID
	for cursor != nil {
		var parent domain.Region
		if err := s.DB.WithContext(ctx).Where("region_id = ?", *cursor).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, parent)
		cursor = parent.ParentID
	}
	return out, nil
}

// FullPath returns the hierarchical display path, e.g. "Ghana > Ashanti > Kumasi".
func (s *Service) FullPath(ctx context.Context, region *domain.Region) (string, error) {
	ancestors, err := s.Ancestors(ctx, region)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		names = append(names, ancestors[i].Name)
	}
	names = append(names, region.Name)
	return strings.Join(names, " > "), nil
}

// Children returns the active direct children, ordered by name.
func (s *Service) Children(ctx context.Context, regionID uuid.UUID) ([]domain.Region, error) {
	var children []domain.Region
	err := s.DB.WithContext(ctx).
		Where("parent_id = ? AND is_active = ?", regionID, true).
		Order("name ASC").
		Find(&children).Error
	return children, err
}

// Descendants returns all active descendants in pre-order, walking the
// store-backed parent adjacency rather than in-memory pointers.
func (s *Service) Descendants(ctx context.Context, region *domain.Region) ([]domain.Region, error) {
	var out []domain.Region
	if err := s.collectDescendants(ctx, region.RegionID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) collectDescendants(ctx context.Context, regionID uuid.UUID, out *[]domain.Region) error {
	children, err := s.Children(ctx, regionID)
	if err != nil {
		return err
	}
	for _, child := range children {
		*out = append(*out, child)
		if err := s.collectDescendants(ctx, child.RegionID, out); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a region. Blocked with ErrHasDependents while any active
// child region or any farm still references it.
func (s *Service) Delete(ctx context.Context, regionID uuid.UUID) error {
	var orgID uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var region domain.Region
		if err := tx.Where("region_id = ?", regionID).First(&region).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegionNotFound
			}
			return err
		}
		orgID = region.OrganizationID

		var children int64
		if err := tx.Model(&domain.Region{}).
			Where("parent_id = ? AND is_active = ?", regionID, true).
			Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return ErrHasDependents
		}

		var farms int64
		if err := tx.Model(&domain.Farm{}).Where("region_id = ?", regionID).Count(&farms).Error; err != nil {
			return err
		}
		if farms > 0 {
			return ErrHasDependents
		}

		return tx.Delete(&region).Error
	})
	if err != nil {
		return err
	}

	s.invalidateTree(ctx, orgID)
	return nil
}

// TreeNode is a region with its active children embedded recursively.
type TreeNode struct {
	domain.Region
	Children []TreeNode `json:"children"`
}

// HierarchyTree returns the organization's root regions with children nested
// recursively. The built tree is cached in Redis for a short TTL and
// invalidated on every region write.
func (s *Service) HierarchyTree(ctx context.Context, orgID uuid.UUID) ([]TreeNode, error) {
	key := treeCacheKey(orgID)
	if s.Cache != nil {
		if b, err := s.Cache.Get(ctx, key).Bytes(); err == nil {
			var cached []TreeNode
			if json.Unmarshal(b, &cached) == nil {
				return cached, nil
			}
		}
	}

	var roots []domain.Region
	if err := s.DB.WithContext(ctx).
		Where("organization_id = ? AND parent_id IS NULL AND is_active = ?", orgID, true).
		Order("name ASC").
		Find(&roots).Error; err != nil {
		return nil, err
	}

	tree := make([]TreeNode, 0, len(roots))
	for _, root := range roots {
		node, err := s.buildNode(ctx, root)
		if err != nil {
			return nil, err
		}
		tree = append(tree, node)
	}

	if s.Cache != nil {
		if b, err := json.Marshal(tree); err == nil {
			s.Cache.Set(ctx, key, b, treeCacheTTL)
		}
	}
	return tree, nil
}

func (s *Service) buildNode(ctx context.Context, region domain.Region) (TreeNode, error) {
	node := TreeNode{Region: region, Children: []TreeNode{}}
	children, err := s.Children(ctx, region.RegionID)
	if err != nil {
		return node, err
	}
	for _, child := range children {
		childNode, err := s.buildNode(ctx, child)
		if err != nil {
			return node, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

func treeCacheKey(orgID uuid.UUID) string {
	return fmt.Sprintf("regions:tree:%s", orgID)
}

func (s *Service) invalidateTree(ctx context.Context, orgID uuid.UUID) {
	if s.Cache != nil {
		s.Cache.Del(ctx, treeCacheKey(orgID))
	}
}
