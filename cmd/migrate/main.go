package main

import (
	flag "github.com/spf13/pflag"

	"stakereferral/pkg/config"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration instead of applying pending ones")
	flag.Parse()

	config.SetLogLevel()
	config.ConnectDB()

	if *rollback {
		config.RollbackMigration()
		return
	}
	config.ExecuteMigrations()
}
