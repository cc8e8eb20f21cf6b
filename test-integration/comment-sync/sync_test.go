package integration

import (
	"net/http"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/pagepulse/comment-sync/internal/api/v1"
	"github.com/pagepulse/comment-sync/internal/status"
	"github.com/pagepulse/comment-sync/test-integration/comment-sync/helpers"
)

const graphTimeLayout = "2006-01-02T15:04:05-0700"

var _ = Describe("Comment Sync", Label("sync"), func() {
	var (
		tempDir string
		graph   *helpers.FakeGraph
		sheets  *helpers.FakeSheets
	)

	startServer := func() *helpers.ServerTestHelper {
		configPath, port := helpers.WriteConfigYAML(tempDir, graph.URL(), sheets.Endpoint())
		server := helpers.NewServerTestHelper(ctx, configPath, port)
		Expect(server.StartServer()).To(Succeed())
		server.WaitForServerReady(10 * time.Second)
		return server
	}

	stopServer := func(server *helpers.ServerTestHelper) {
		Expect(server.StopServer()).To(Succeed())
	}

	BeforeEach(func() {
		tempDir = createTempDir("comment-sync-it-")
		graph = helpers.NewFakeGraph(helpers.TestAPIVersion, helpers.TestPageID, helpers.TestAccessToken)
		sheets = helpers.NewFakeSheets(helpers.TestSpreadsheetID)

		graph.SetPosts(helpers.GraphPost{
			ID:           "page-1_post-1",
			Message:      "Spring sale",
			PermalinkURL: "https://facebook.example/posts/1",
			CreatedTime:  "2024-03-01T08:00:00+0000",
			Comments: []helpers.GraphComment{
				{ID: "c-1", Message: "Price?", AuthorID: "u-1", AuthorName: "Ana", CreatedTime: "2024-03-01T09:00:00+0000"},
				{ID: "c-2", Message: "call me 555-123-4567", AuthorID: "u-2", AuthorName: "Bo", CreatedTime: "2024-03-01T09:30:00+0000"},
			},
		})
	})

	AfterEach(func() {
		graph.Close()
		sheets.Close()
		cleanupTempDir(tempDir)
	})

	Context("First pass", func() {
		It("appends one row per comment and commits the cursor", func() {
			before := uint64(time.Now().Unix())
			server := startServer()
			defer stopServer(server)

			Eventually(sheets.CommentIDs, 10*time.Second, 100*time.Millisecond).Should(Equal([]string{"c-1", "c-2"}))

			rows := sheets.Rows()
			Expect(rows[0]).To(Equal([]string{
				"2024-03-01T09:00:00Z",
				"page-1_post-1",
				"c-1",
				"Ana",
				"u-1",
				"Price?",
				"",
				"Spring sale",
				"https://facebook.example/posts/1",
				"2024-03-01T08:00:00Z",
			}))
			Expect(rows[1][6]).To(Equal("555-123-4567"))

			var current v1.CursorResponse
			Eventually(func() bool {
				server.GetJSON("/api/cursor/current", &current)
				return current.HasTimestamp
			}, 10*time.Second, 100*time.Millisecond).Should(BeTrue())
			Expect(current.Timestamp).To(BeNumerically(">=", before))

			var st status.SyncStatus
			Eventually(func() status.SyncPhase {
				server.GetJSON("/api/sync/status", &st)
				return st.Phase
			}, 10*time.Second, 100*time.Millisecond).Should(Equal(status.SyncPhaseComplete))
			Expect(st.TotalRowsEmitted).To(BeEquivalentTo(2))
			Expect(st.LastCommittedCursor).To(Equal(current.Timestamp))
		})

		It("uses a placeholder when the post detail cannot be fetched", func() {
			graph.SetPosts(helpers.GraphPost{
				ID:            "page-1_post-2",
				Message:       "Hidden post",
				CreatedTime:   "2024-03-02T08:00:00+0000",
				DetailMissing: true,
				Comments: []helpers.GraphComment{
					{ID: "c-9", Message: "hello", AuthorID: "u-9", AuthorName: "Cy", CreatedTime: "2024-03-02T09:00:00+0000"},
				},
			})

			server := startServer()
			defer stopServer(server)

			Eventually(sheets.CommentIDs, 10*time.Second, 100*time.Millisecond).Should(Equal([]string{"c-9"}))
			row := sheets.Rows()[0]
			Expect(row[1]).To(Equal("page-1_post-2"))
			Expect(row[7]).To(BeEmpty())
			Expect(row[8]).To(BeEmpty())
			Expect(row[9]).To(BeEmpty())
		})
	})

	Context("Restart", func() {
		It("resumes from the committed cursor without emitting old comments again", func() {
			server := startServer()
			Eventually(sheets.CommentIDs, 10*time.Second, 100*time.Millisecond).Should(HaveLen(2))

			var current v1.CursorResponse
			Eventually(func() bool {
				server.GetJSON("/api/cursor/current", &current)
				return current.HasTimestamp
			}, 10*time.Second, 100*time.Millisecond).Should(BeTrue())
			stopServer(server)

			graph.AddComment("page-1_post-1", helpers.GraphComment{
				ID:          "c-3",
				Message:     "still available?",
				AuthorID:    "u-3",
				AuthorName:  "Di",
				CreatedTime: time.Now().Add(time.Hour).UTC().Format(graphTimeLayout),
			})

			server = startServer()
			defer stopServer(server)

			Eventually(sheets.CommentIDs, 10*time.Second, 100*time.Millisecond).Should(Equal([]string{"c-1", "c-2", "c-3"}))
			Consistently(sheets.CommentIDs, time.Second, 100*time.Millisecond).Should(HaveLen(3))

			sinces := graph.Sinces()
			Expect(sinces).To(HaveLen(2))
			Expect(sinces[0]).To(BeEmpty())
			Expect(sinces[1]).To(Equal(strconv.FormatUint(current.Timestamp, 10)))
		})
	})

	Context("Admin API", func() {
		It("overwrites the cursor and reports the sink healthy", func() {
			server := startServer()
			defer stopServer(server)

			Eventually(sheets.CommentIDs, 10*time.Second, 100*time.Millisecond).Should(HaveLen(2))

			var health v1.SinkHealthResponse
			Expect(server.GetJSON("/api/sink/health", &health)).To(Equal(http.StatusOK))
			Expect(health.Status).To(Equal("OK"))

			var update v1.CursorUpdateResponse
			Expect(server.PostJSON("/api/cursor/update/1700000000", &update)).To(Equal(http.StatusOK))
			Expect(update.UpdateSuccessful).To(BeTrue())
			Expect(update.VerifiedTimestamp).To(BeEquivalentTo(1700000000))

			var current v1.CursorResponse
			Expect(server.GetJSON("/api/cursor/current", &current)).To(Equal(http.StatusOK))
			Expect(current.Timestamp).To(BeEquivalentTo(1700000000))

			var selfTest v1.SelfTestResponse
			Expect(server.PostJSON("/api/cursor/self-test", &selfTest)).To(Equal(http.StatusOK))
			Expect(selfTest.Success).To(BeTrue())
			Expect(selfTest.Restored).To(BeTrue())

			Expect(server.GetJSON("/api/cursor/current", &current)).To(Equal(http.StatusOK))
			Expect(current.Timestamp).To(BeEquivalentTo(1700000000))
		})
	})
})
