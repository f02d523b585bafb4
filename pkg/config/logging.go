package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// SetLogLevel applies LOG_LEVEL, defaulting to info.
func SetLogLevel() {
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// LogToFile sends logrus output to logs/<name>.log with full timestamps.
// Output stays on stdout when the file cannot be opened.
func LogToFile(name string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	SetLogLevel()
	_ = os.MkdirAll("logs", 0755)
	file, err := os.OpenFile("logs/"+name+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Warn("无法打开日志文件，日志将输出到标准输出")
		return
	}
	log.SetOutput(file)
}
