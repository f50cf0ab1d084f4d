//go:build integration

package integration

import (
	"context"
	"os"
	"runtime"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/daemon"
	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/infra"
	"github.com/humaxai2025/flowmode/internal/usecase"
	"github.com/humaxai2025/flowmode/test/fixtures"
)

var _ = Describe("Focus session", func() {
	var (
		tmpDir  string
		hosts   *fixtures.FakeHostsFile
		history *infra.HistoryStore
		ticks   chan time.Time
		clock   time.Time
		engine  *usecase.Engine
		pm      domain.ProcessManager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "flowmode-session-*")
		Expect(err).NotTo(HaveOccurred())

		hosts, err = fixtures.NewFakeHostsFile(tmpDir, fixtures.SampleHosts)
		Expect(err).NotTo(HaveOccurred())

		mode := infra.DetectExecMode(hosts.Path, hosts.DataDir)
		pm = infra.NewProcessManager()
		logger := zap.NewNop()

		key, err := infra.LoadOrCreateHistoryKey(infra.NewHistoryKeyFile(mode.DataDir))
		Expect(err).NotTo(HaveOccurred())
		history, err = infra.NewHistoryStore(mode.DataDir, key, logger)
		Expect(err).NotTo(HaveOccurred())

		ticks = make(chan time.Time)
		clock = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
		engine = usecase.NewEngine(usecase.EngineDeps{
			Guard:   infra.NewHostsFile(mode.HostsPath, "", infra.NewMarkerFile(mode), pm, logger),
			Warden:  usecase.NewWarden(pm, logger),
			History: history,
			Logger:  logger,
		}, usecase.EngineConfig{
			Ticks: func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} },
			Clock: func() time.Time { return clock },
		})
	})

	AfterEach(func() {
		history.Close()
		os.RemoveAll(tmpDir)
	})

	sessionConfig := func(apps ...string) domain.SessionConfig {
		return domain.SessionConfig{
			Total:   25 * time.Minute,
			Task:    "integration",
			Domains: []string{"reddit.com"},
			Apps:    apps,
		}
	}

	Context("when the timer runs out", func() {
		It("should block during the session and restore afterwards", func() {
			Expect(engine.Start(context.Background(), sessionConfig())).To(Succeed())
			Expect(hosts.Read()).To(ContainSubstring("127.0.0.1 reddit.com # flowmode"))

			ticks <- clock.Add(25 * time.Minute)

			rec, err := engine.Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Outcome).To(Equal(domain.OutcomeCompleted))
			Expect(hosts.Read()).To(Equal(fixtures.SampleHosts))

			records, err := history.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Task).To(Equal("integration"))
			Expect(records[0].Outcome).To(Equal(domain.OutcomeCompleted))
		})
	})

	Context("when stopped early", func() {
		It("should restore the hosts file and record a stopped session", func() {
			Expect(engine.Start(context.Background(), sessionConfig())).To(Succeed())

			rec, err := engine.Stop(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Outcome).To(Equal(domain.OutcomeStopped))
			Expect(hosts.Read()).To(Equal(fixtures.SampleHosts))
			Expect(engine.State().Status).To(Equal(domain.StatusCompleted))
		})
	})

	Context("with a distracting application running", func() {
		var app *fixtures.FakeApp

		BeforeEach(func() {
			if runtime.GOOS == "windows" {
				Skip("fake applications need a sleep binary")
			}
			var err error
			app, err = fixtures.StartFakeApp(tmpDir, "fakechat")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			if app != nil {
				app.Stop()
			}
		})

		It("should terminate it when the session starts", func() {
			Expect(engine.Start(context.Background(), sessionConfig("fakechat"))).To(Succeed())
			Eventually(app.Exited, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

			rec, err := engine.Stop(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Killed).To(Equal(1))
			Expect(rec.KillFailures).To(BeZero())
		})

		It("should terminate a relaunch on the next resweep", func() {
			Expect(engine.Start(context.Background(), sessionConfig())).To(Succeed())
			Expect(app.Exited()).To(BeFalse(), "no apps configured for the initial sweep")

			resweepTicks := make(chan time.Time)
			resweeper := daemon.NewResweeper(daemon.ResweeperConfig{
				Interval: time.Minute,
				Apps:     []string{"fakechat"},
				Ticks:    func(time.Duration) (<-chan time.Time, func()) { return resweepTicks, func() {} },
			}, usecase.NewWarden(pm, zap.NewNop()), zap.NewNop())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = resweeper.Run(ctx)
			}()

			resweepTicks <- time.Now()
			Eventually(app.Exited, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

			cancel()
			<-done
			_, err := engine.Stop(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
