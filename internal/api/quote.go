package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quotient/internal/quote"
)

func (a *API) ListQuotes(c *gin.Context) {
	quotes, err := a.quotes.ListQuotes(c.Request.Context(), quote.ListQuotesRequest{
		GroupID: c.Param("groupID"),
		Actor:   actor(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": toQuotes(quotes)})
}

type addQuoteRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (a *API) AddQuote(c *gin.Context) {
	var req addQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := a.quotes.AddQuote(c.Request.Context(), quote.AddQuoteRequest{
		GroupID: c.Param("groupID"),
		Actor:   actor(c).UserID,
		Text:    req.Text,
		Author:  req.Author,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuote(q))
}

type editQuoteRequest struct {
	Text   *string `json:"text"`
	Author *string `json:"author"`
}

func (a *API) EditQuote(c *gin.Context) {
	var req editQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := a.quotes.EditQuote(c.Request.Context(), quote.EditQuoteRequest{
		QuoteID: c.Param("quoteID"),
		Actor:   actor(c).UserID,
		Text:    req.Text,
		Author:  req.Author,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuote(q))
}

func (a *API) DeleteQuote(c *gin.Context) {
	err := a.quotes.DeleteQuote(c.Request.Context(), quote.DeleteQuoteRequest{
		QuoteID: c.Param("quoteID"),
		Actor:   actor(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
