package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/njoerd114/saleslive/internal/insights"
	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/repository"
)

// --- bills -------------------------------------------------------------------

func (s *Server) createBill(c *gin.Context) {
	var in repository.BillInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}
	b, err := s.repo.CreateBill(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) markBillPaid(c *gin.Context) {
	if err := s.repo.MarkBillAsPaid(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) billsByShop(c *gin.Context) {
	bills, err := s.repo.GetBillsByShop(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bills)
}

func (s *Server) billsByStaff(c *gin.Context) {
	bills, err := s.repo.GetBillsByStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bills)
}

func (s *Server) todayBills(c *gin.Context) {
	bills, err := s.repo.GetTodayBills(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bills)
}

// --- analytics ---------------------------------------------------------------

func (s *Server) last7Days(c *gin.Context) {
	days, err := s.repo.GetBillsLast7Days(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (s *Server) topProducts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, &model.ValidationError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		limit = n
	}
	top, err := s.repo.GetTopSellingProducts(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}

// salesSummary takes ?kind=revenue (default) or ?kind=products.
func (s *Server) salesSummary(c *gin.Context) {
	kind := insights.Kind(c.DefaultQuery("kind", string(insights.KindRevenue)))
	sum, err := s.repo.SummarizeSales(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) dashboard(c *gin.Context) {
	k, err := s.repo.GetDashboardKPIs(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

// --- shops -------------------------------------------------------------------

type createShopRequest struct {
	Name    string `json:"shopName"`
	OwnerID string `json:"ownerId"`
}

func (s *Server) createShop(c *gin.Context) {
	var req createShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	shop, err := s.repo.CreateShop(c.Request.Context(), req.Name, req.OwnerID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, shop)
}

func (s *Server) getShop(c *gin.Context) {
	shop, err := s.repo.GetShopByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if shop == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "shop not found"})
		return
	}
	c.JSON(http.StatusOK, shop)
}

func (s *Server) updateShop(c *gin.Context) {
	var patch model.ShopPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.badRequest(c, err)
		return
	}
	shop, err := s.repo.UpdateShop(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

// --- products ----------------------------------------------------------------

func (s *Server) products(c *gin.Context) {
	products, err := s.repo.GetProducts(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) saveProduct(c *gin.Context) {
	var p model.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}
	saved, err := s.repo.SaveProduct(c.Request.Context(), &p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.repo.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- users and staff ---------------------------------------------------------

func (s *Server) users(c *gin.Context) {
	users, err := s.repo.GetUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var in repository.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}
	u, err := s.repo.CreateUser(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.repo.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) updateUser(c *gin.Context) {
	var patch model.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.repo.UpdateUser(c.Request.Context(), c.Param("id"), patch); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) staff(c *gin.Context) {
	staff, err := s.repo.GetStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (s *Server) inviteStaff(c *gin.Context) {
	var in repository.InviteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}
	in.ShopID = c.Param("id")
	si, err := s.repo.CreateStaffInvite(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, si)
}

func (s *Server) resendInvite(c *gin.Context) {
	var req struct {
		InvitedBy string `json:"invitedBy"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	si, err := s.repo.ResendStaffInvite(c.Request.Context(), c.Param("id"), req.InvitedBy)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, si)
}

func (s *Server) deleteStaff(c *gin.Context) {
	if err := s.repo.DeleteStaff(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- sync --------------------------------------------------------------------

func (s *Server) syncNow(c *gin.Context) {
	stats, err := s.repo.SyncPendingData(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pushed": stats.Pushed, "marked": stats.Marked, "stale": stats.Stale})
}

func (s *Server) syncStatus(c *gin.Context) {
	n, err := s.repo.PendingSyncCount(c.Request.Context(), c.Query("shopId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": n})
}
