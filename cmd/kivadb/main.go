package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/kivadb/kivadb/internal/conn"
	"github.com/kivadb/kivadb/internal/db"
)

func main() {
	cwd, _ := os.Getwd()

	db_write_path := flag.String("db", cwd+"/db.kdb.json", "path to save db data")
	in_mem := flag.Bool("m", false, "don't persist db")
	port := flag.Int("port", 7085, "listening port")
	write_interval := flag.Int("write-interval", 1000, "persistence debounce interval in ms")
	backup_dir := flag.String("backup-dir", "", "write periodic backups into this directory")
	backup_interval := flag.Int("backup-interval", 300, "backup interval in seconds")
	backup_keep := flag.Int("backup-keep", 5, "number of backups to retain")
	debug := flag.Bool("debug", false, "show debug logs")

	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))

	write_path := *db_write_path
	if *in_mem {
		write_path = ""
	}

	database := openDatabase(write_path, log)

	if *backup_dir != "" {
		bm, err := db.NewBackupManager(
			database, *backup_dir,
			time.Duration(*backup_interval)*time.Second, *backup_keep,
		)
		if err != nil {
			log.Error("backup manager setup failed", "err", err)
			os.Exit(1)
		}
		bm.Start()
		defer bm.Stop()
	}

	err := conn.Listen(database, conn.ListenOptions{
		Port:          *port,
		WritePath:     write_path,
		WriteInterval: time.Duration(*write_interval) * time.Millisecond,
	})
	if err != nil {
		log.Error("shutdown failed", "err", err)
		os.Exit(1)
	}
}

func openDatabase(write_path string, log *slog.Logger) *db.DB {
	if write_path == "" {
		return db.New(log)
	}
	if _, err := os.Stat(write_path); os.IsNotExist(err) {
		return db.New(log)
	}
	database, err := db.Load(write_path, "", log)
	if err != nil {
		log.Error("failed to load database file", "path", write_path, "err", err)
		os.Exit(1)
	}
	return database
}
