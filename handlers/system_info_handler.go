package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"

	"slopsbot/model"
)

// StatusCommand replies with host and process statistics.
const StatusCommand = "!status"

// SessionStats is what the gateway session knows about itself.
type SessionStats struct {
	Latency time.Duration
	Guilds  int
	Started time.Time
}

// SystemInfoHandler answers !status with an embed of system information.
func SystemInfoHandler(p model.Platform, m *discordgo.Message, stats SessionStats) {
	embed := buildSystemInfoEmbed(stats)
	_, err := p.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: m.Reference(),
	})
	if err != nil {
		log.WithError(err).WithField("channel", m.ChannelID).Warn("Failed to send status")
	}
}

func buildSystemInfoEmbed(stats SessionStats) *discordgo.MessageEmbed {
	// gopsutil errors leave the zero value in place; a partial status is still useful.
	cpuCount, _ := cpu.Counts(true)
	cpuUsage := "n/a"
	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		cpuUsage = fmt.Sprintf("%.1f%%", percent[0])
	}
	memory := "n/a"
	if vm, err := mem.VirtualMemory(); err == nil {
		memory = fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024)
	}
	osVersion := runtime.GOOS
	kernel := "n/a"
	if hostInfo, err := host.Info(); err == nil {
		osVersion = strings.TrimSpace(hostInfo.Platform + " " + hostInfo.PlatformVersion)
		kernel = hostInfo.KernelVersion
	}

	uptime := "n/a"
	if !stats.Started.IsZero() {
		uptime = time.Since(stats.Started).Truncate(time.Second).String()
	}

	return &discordgo.MessageEmbed{
		Title: "System status",
		Color: 0x5865F2, // Discord Blurple
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💻 OS", Value: osVersion, Inline: true},
			{Name: "🔧 Kernel", Value: kernel, Inline: true},
			{Name: "🐹 Go", Value: runtime.Version(), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU usage", Value: cpuUsage, Inline: true},
			{Name: "🧠 Memory", Value: memory, Inline: true},
			{Name: "⏱️ WebSocket latency", Value: stats.Latency.String(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
			{Name: "🌍 Guilds", Value: fmt.Sprintf("%d", stats.Guilds), Inline: true},
			{Name: "⌛ Uptime", Value: uptime, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("slopsbot・%s", time.Now().Format("15:04")),
		},
	}
}
