package seed

import (
  "context"
  "fmt"
  "os"

  "gorm.io/gorm"

  "github.com/google/uuid"
  "github.com/studyhall-org/studyhall-backend/internal/repos"
  "github.com/studyhall-org/studyhall-backend/internal/seed/permission"
  "github.com/studyhall-org/studyhall-backend/internal/types"
)

// SeedAll syncs the permission table and makes sure the three fixed roles
// exist: admin holds every permission, user holds the chat permissions,
// pending holds none.
func SeedAll(
  db *gorm.DB,
  permissionRepo repos.PermissionRepo,
  roleRepo repos.RoleRepo,
) error {
  permissionSeedPathJSON := os.Getenv("SEED_PERMISSION_JSON_PATH")
  fmt.Println("Running SeedAll... seeding permissions")

  if err := permission.SyncPermissions(db, permissionRepo, roleRepo, permissionSeedPathJSON); err != nil {
    return fmt.Errorf("failed to sync permissions: %w", err)
  }
  if err := seedRoles(db, permissionRepo, roleRepo); err != nil {
    return fmt.Errorf("failed to seed roles: %w", err)
  }

  fmt.Println("SeedAll Complete!")
  return nil
}

func seedRoles(db *gorm.DB, permissionRepo repos.PermissionRepo, roleRepo repos.RoleRepo) error {
  ctx := context.Background()
  return db.Transaction(func(tx *gorm.DB) error {
    allPerms, err := permissionRepo.GetAll(ctx, tx)
    if err != nil {
      return fmt.Errorf("failed fetching permissions for role seed: %w", err)
    }
    var allPermIDs []uuid.UUID
    var chatPermIDs []uuid.UUID
    for _, p := range allPerms {
      allPermIDs = append(allPermIDs, p.ID)
      if p.Category == "chat" {
        chatPermIDs = append(chatPermIDs, p.ID)
      }
    }

    grants := map[string][]uuid.UUID{
      "admin":   allPermIDs,
      "user":    chatPermIDs,
      "pending": nil,
    }
    for _, name := range []string{"admin", "user", "pending"} {
      role, err := roleRepo.GetByName(ctx, tx, name)
      if err != nil {
        return fmt.Errorf("failed fetching role %q: %w", name, err)
      }
      if role == nil {
        created, cErr := roleRepo.Create(ctx, tx, []*types.Role{{ID: uuid.New(), Name: name}})
        if cErr != nil {
          return fmt.Errorf("failed creating role %q: %w", name, cErr)
        }
        role = created[0]
      }
      if permIDs := grants[name]; len(permIDs) > 0 {
        if err := roleRepo.AssociatePermissionsByIDs(ctx, tx, []uuid.UUID{role.ID}, permIDs); err != nil {
          return fmt.Errorf("failed associating permissions with role %q: %w", name, err)
        }
      }
    }
    return nil
  })
}
