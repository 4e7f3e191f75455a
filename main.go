package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"

	"lms/catalog"
	"lms/domain"
	"lms/events"
	log2 "lms/log"
	"lms/loans"
	"lms/repository"
	"lms/validator"
)

func main() {
	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	db := repository.InitDatabase()
	bookRepo := repository.NewBookRepo(db)
	loanRepo := repository.NewLoanRepo(db)

	opts := []loans.Option{}
	if addr := os.Getenv("LMS_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: "", DB: 0})
		if _, err := client.Ping(context.Background()).Result(); err != nil {
			log2.GetLogger(context.Background()).Fatalf("error creating redis client %s", err)
		}
		opts = append(opts, loans.WithPublisher(events.NewPublisher(client)))
	}

	loanService := loans.NewService(bookRepo, loanRepo, loans.DefaultConfig(), opts...)
	catalogService := catalog.NewService(bookRepo)

	router.POST("/books", func(c *gin.Context) {
		var req domain.CreateBookRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		book, err := catalogService.CreateBook(c, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bookView(book))
	})

	router.GET("/books", func(c *gin.Context) {
		books, err := catalogService.ListAvailable(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, gin.H{"books": lo.Map(books, func(b repository.Book, _ int) gin.H {
			return bookView(b)
		})})
	})

	router.GET("/books/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		book, err := catalogService.GetBook(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, bookView(book))
	})

	router.PUT("/books/:id/copies", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req domain.AdjustTotalsRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		book, err := catalogService.AdjustTotals(c, id, req.NewTotal)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, bookView(book))
	})

	router.POST("/books/:id/unavailable", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		book, err := catalogService.MarkUnavailable(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, bookView(book))
	})

	router.DELETE("/books/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := catalogService.DeleteBook(c, id); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "success"})
	})

	router.POST("/loans", func(c *gin.Context) {
		var req domain.BorrowRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		loan, err := loanService.Borrow(c, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, loanView(loanService, loan))
	})

	router.GET("/loans/active", func(c *gin.Context) {
		list, err := loanService.ListActive(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, gin.H{"loans": loanViews(loanService, list)})
	})

	router.GET("/loans/late", func(c *gin.Context) {
		list, err := loanService.ListLate(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, gin.H{"loans": loanViews(loanService, list)})
	})

	router.GET("/loans/history/:card", func(c *gin.Context) {
		list, err := loanService.History(c, c.Param("card"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, gin.H{"loans": loanViews(loanService, list)})
	})

	router.GET("/loans/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		loan, err := loanService.Get(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, loanView(loanService, loan))
	})

	router.POST("/loans/:id/return", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		loan, err := loanService.Return(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, loanView(loanService, loan))
	})

	router.POST("/loans/returns", func(c *gin.Context) {
		var req struct {
			LoanIDs []uint `json:"loan_ids"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results := loanService.ReturnMany(c, req.LoanIDs)
		c.JSON(200, gin.H{"results": lo.Map(results, func(r loans.ReturnResult, _ int) gin.H {
			out := gin.H{"loan_id": r.LoanID, "ok": r.Err == nil}
			if r.Err != nil {
				out["error"] = r.Err.Error()
			}
			return out
		})})
	})

	router.POST("/loans/:id/cancel", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		loan, err := loanService.Cancel(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, loanView(loanService, loan))
	})

	router.DELETE("/loans/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var err error
		if c.Query("force") == "true" {
			err = loanService.ForcePurge(c, id)
		} else {
			err = loanService.Purge(c, id)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "success"})
	})

	router.Run(":8080")
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoCopies),
		errors.Is(err, domain.ErrBorrowerLimit),
		errors.Is(err, domain.ErrLoanNotActive),
		errors.Is(err, domain.ErrLoanNotTerminal),
		errors.Is(err, domain.ErrActiveLoansExist),
		errors.Is(err, domain.ErrInconsistent):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bookView(b repository.Book) gin.H {
	return gin.H{
		"id":               b.ID,
		"title":            b.Title,
		"isbn":             validator.FormatISBN13(b.ISBN),
		"author":           b.Author,
		"category":         b.Category,
		"publication_year": b.PublicationYear,
		"copies_total":     b.CopiesTotal,
		"copies_available": b.CopiesAvailable,
	}
}

func loanView(s *loans.Service, l repository.Loan) gin.H {
	return gin.H{
		"id":          l.ID,
		"reference":   l.Reference,
		"book_id":     l.BookID,
		"card_number": l.CardNumber,
		"borrowed_at": l.BorrowedAt,
		"due_at":      l.DueAt,
		"returned_at": l.ReturnedAt,
		"status":      s.EffectiveStatus(l),
		"penalty":     s.Penalty(l),
	}
}

func loanViews(s *loans.Service, list []repository.Loan) []gin.H {
	return lo.Map(list, func(l repository.Loan, _ int) gin.H {
		return loanView(s, l)
	})
}
