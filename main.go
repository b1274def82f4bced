package main

import (
	"github.com/cppla/murmur/config"
	"github.com/cppla/murmur/models"
	"github.com/cppla/murmur/routes"
	"github.com/cppla/murmur/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Post{},
		&models.Like{},
		&models.Follow{},
		&models.Comment{},
		&models.CommentReaction{},
	)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
