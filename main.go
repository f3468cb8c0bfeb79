package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/api/handlers"
	"github.com/Rohith-Das/Med360-sub001/api/scheduler"
	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/databases"
)

func main() {
	// .env is optional, deployed pods get real env vars
	_ = godotenv.Load()

	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil {
		log.Fatal(err)
	}

	s := scheduler.NewScheduler(a.Notify, databases.NewVideoSessionDatabase(a.DB()))
	s.Start()
	defer s.Stop()

	zap.S().Infow("med360-realtime is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
